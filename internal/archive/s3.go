package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/RixGem/progresspath/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver snapshots outgoing day datasets to an S3-compatible bucket
// (Cloudflare R2 in production) before the store deletes them. Archival
// is best effort: the refresh run never fails because of it.
type Archiver struct {
	client *s3.Client
	bucket string
}

// Config carries the R2 connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

func New(ctx context.Context, cfg Config) (*Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
	})

	return &Archiver{client: client, bucket: cfg.Bucket}, nil
}

// ArchiveDataset uploads the rows as one JSON object keyed by the day
// they belonged to. Rows from several prior days land in the same
// object under the oldest day's key only when a previous run failed;
// the key therefore carries the current day id, not the rows' own.
func (a *Archiver) ArchiveDataset(ctx context.Context, dayID string, rows []models.QuoteRow) error {
	if len(rows) == 0 {
		return nil
	}

	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	key := fmt.Sprintf("quotes/replaced-before-%s.json", dayID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive %s: %w", key, err)
	}

	return nil
}
