// Package transcribe implements the speech-to-text client: object upload,
// long-running recognition submission and bounded status polling.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mpetrovs/scribebot/internal/common"
	"github.com/mpetrovs/scribebot/internal/logging"
)

// errNotDone marks a poll that found the operation still running.
var errNotDone = errors.New("operation not done")

// Config contains the transcription client settings.
type Config struct {
	APIKey           string
	RecognizeURL     string
	OperationBaseURL string
	// StorageBaseURL + Bucket + object key form the public URI the
	// recognizer reads the uploaded audio from.
	StorageBaseURL  string
	Bucket          string
	PollInterval    time.Duration
	MaxPollAttempts int
	// PollRecorder, when set, receives the attempt count once a polling
	// run finishes, whatever its outcome.
	PollRecorder func(attempts int)
}

// Client drives the recognition protocol against the speech-to-text
// backend.
type Client struct {
	cfg        Config
	httpClient *http.Client
	objects    ObjectStore
	log        logging.Logger
}

func NewClient(cfg Config, objects ObjectStore, log logging.Logger) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 5
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		objects:    objects,
		log:        log,
	}
}

type recognizeSpecification struct {
	LiteratureText bool   `json:"literature_text"`
	AudioEncoding  string `json:"audioEncoding"`
}

type recognizeRequest struct {
	Config struct {
		Specification recognizeSpecification `json:"specification"`
	} `json:"config"`
	Audio struct {
		URI string `json:"uri"`
	} `json:"audio"`
}

type recognizeResponse struct {
	ID string `json:"id"`
}

type alternative struct {
	Text string `json:"text"`
}

type chunk struct {
	Alternatives []alternative `json:"alternatives"`
}

type operationResponse struct {
	Done     bool `json:"done"`
	Response struct {
		Chunks []chunk `json:"chunks"`
	} `json:"response"`
}

// Transcribe uploads the audio file, submits a recognition job and polls
// it to completion. The uploaded object is removed afterwards on a
// best-effort basis.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	key, err := c.objects.Upload(ctx, audioPath)
	if err != nil {
		return "", err
	}
	defer func() {
		if derr := c.objects.Delete(context.WithoutCancel(ctx), key); derr != nil {
			c.log.Warn(ctx, "audio object cleanup failed", "key", key, "error", derr)
		}
	}()

	uri := fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.cfg.StorageBaseURL, "/"), c.cfg.Bucket, key)

	opID, err := c.submit(ctx, uri)
	if err != nil {
		return "", err
	}
	c.log.Info(ctx, "recognition submitted", "operation_id", opID)

	return c.poll(ctx, opID)
}

// submit starts a long-running recognition job and returns its
// operation id.
func (c *Client) submit(ctx context.Context, audioURI string) (string, error) {
	var body recognizeRequest
	body.Config.Specification = recognizeSpecification{
		LiteratureText: true,
		AudioEncoding:  "MP3",
	}
	body.Audio.URI = audioURI

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RecognizeURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit recognition: %w: %v", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", common.NewStatusError("submit recognition", resp.StatusCode)
	}

	var parsed recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode recognition response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("submit recognition: no operation id: %w", common.ErrService)
	}

	return parsed.ID, nil
}

// poll queries the operation status at a fixed interval until done, up to
// MaxPollAttempts. Exhausting the budget is a terminal common.ErrTimeout;
// backend errors abort immediately.
func (c *Client) poll(ctx context.Context, opID string) (string, error) {
	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxPollAttempts-1), retry.NewConstant(c.cfg.PollInterval))

	var text string
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		op, err := c.getOperation(ctx, opID)
		if err != nil {
			return err
		}
		if !op.Done {
			return retry.RetryableError(errNotDone)
		}
		text = joinChunks(op.Response.Chunks)
		return nil
	})
	if c.cfg.PollRecorder != nil {
		c.cfg.PollRecorder(attempts)
	}
	if err != nil {
		if errors.Is(err, errNotDone) {
			return "", fmt.Errorf("operation %s after %d attempts: %w", opID, c.cfg.MaxPollAttempts, common.ErrTimeout)
		}
		return "", err
	}

	return text, nil
}

func (c *Client) getOperation(ctx context.Context, opID string) (*operationResponse, error) {
	url := strings.TrimRight(c.cfg.OperationBaseURL, "/") + "/" + opID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Api-Key "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll operation %s: %w: %v", opID, common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, common.NewStatusError("poll operation "+opID, resp.StatusCode)
	}

	var parsed operationResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode operation %s: %w", opID, err)
	}

	return &parsed, nil
}

// joinChunks concatenates each chunk's top alternative in chunk order,
// space-separated. Chunks with no alternatives are skipped.
func joinChunks(chunks []chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Alternatives) == 0 {
			continue
		}
		parts = append(parts, ch.Alternatives[0].Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
