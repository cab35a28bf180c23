package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/RixGem/progresspath/internal/models"
	"github.com/go-resty/resty/v2"
)

type GeminiClient struct {
	client        *resty.Client
	apiKey        string
	model         string
	baseURL       string
	tokensPerItem int
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewGeminiClient builds a reusable client. timeout bounds every call;
// tokensPerItem scales the output budget with the requested batch size
// so larger batches are not truncated mid-array.
func NewGeminiClient(apiKey, model string, timeout time.Duration, tokensPerItem int) *GeminiClient {
	return &GeminiClient{
		client:        resty.New().SetTimeout(timeout),
		apiKey:        apiKey,
		model:         model,
		baseURL:       "https://generativelanguage.googleapis.com/v1beta/models",
		tokensPerItem: tokensPerItem,
	}
}

// GenerateBatch asks the model for one batch of quotes and returns the
// raw response text. Parsing and validation are the caller's concern.
func (g *GeminiClient) GenerateBatch(ctx context.Context, req models.GenerationRequest) (string, error) {
	prompt := BuildBatchPrompt(req)

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)

	body := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{
				Text: prompt,
			}},
		}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.9,
			MaxOutputTokens: req.BatchSize * g.tokensPerItem,
		},
	}

	var resp geminiResponse
	httpResp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&resp).
		Post(url)

	if err != nil {
		return "", &NetworkError{Err: err}
	}

	if resp.Error != nil {
		return "", &NetworkError{Err: fmt.Errorf("API error: %s", resp.Error.Message)}
	}

	if httpResp.IsError() {
		return "", &NetworkError{Err: fmt.Errorf("unexpected status code %d", httpResp.StatusCode())}
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &NetworkError{Err: fmt.Errorf("no content in response")}
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}
