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

// YandexGPT talks to the Yandex foundation-models completion endpoint.
type YandexGPT struct {
	endpoint   string
	apiKey     string
	modelURI   string
	httpClient *http.Client
}

func NewYandexGPT(endpoint, apiKey, modelURI string) *YandexGPT {
	return &YandexGPT{
		endpoint:   endpoint,
		apiKey:     apiKey,
		modelURI:   modelURI,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type yandexMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type yandexCompletionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   string  `json:"maxTokens"`
}

type yandexRequest struct {
	ModelURI          string                  `json:"modelUri"`
	CompletionOptions yandexCompletionOptions `json:"completionOptions"`
	Messages          []yandexMessage         `json:"messages"`
}

type yandexResponse struct {
	Result struct {
		Alternatives []struct {
			Message yandexMessage `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

func (y *YandexGPT) Complete(ctx context.Context, prompt string) (string, error) {
	body := yandexRequest{
		ModelURI: y.modelURI,
		CompletionOptions: yandexCompletionOptions{
			Stream:      false,
			Temperature: 0.6,
			MaxTokens:   "2000",
		},
		Messages: []yandexMessage{
			{Role: "system", Text: "You are helpful assistant"},
			{Role: "user", Text: prompt},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+y.apiKey)

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("yandex completion: %w: %v", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", common.NewStatusError("yandex completion", resp.StatusCode)
	}

	var parsed yandexResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode yandex completion: %w", err)
	}
	if len(parsed.Result.Alternatives) == 0 {
		return "", fmt.Errorf("yandex completion: empty alternatives: %w", common.ErrService)
	}

	return parsed.Result.Alternatives[0].Message.Text, nil
}
