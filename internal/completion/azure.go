package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mpetrovs/scribebot/internal/common"
)

// AzureOpenAI talks to an Azure-hosted OpenAI chat-completions
// deployment. The endpoint carries the deployment and api-version.
type AzureOpenAI struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewAzureOpenAI(endpoint, apiKey, model string) *AzureOpenAI {
	if model == "" {
		model = "gpt-4"
	}
	return &AzureOpenAI{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
}

type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
}

func (a *AzureOpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	body := openaiRequest{
		Model:    a.model,
		Messages: []openaiMessage{{Role: "user", Content: prompt}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w: %v", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", common.NewStatusError("openai completion", resp.StatusCode)
	}

	var parsed openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode openai completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty choices: %w", common.ErrService)
	}

	return parsed.Choices[0].Message.Content, nil
}
