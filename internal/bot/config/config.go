// Package config handles configuration for the bot process, including
// defaults, environment overlay (.env aware) and command-line flags.
package config

import "time"

// Config holds runtime settings for the bot.
//
// Fields:
//   - BotToken: Telegram bot token.
//   - DatabaseDSN: credential store DSN. A postgres:// URL selects the
//     pgx backend, anything else is treated as a SQLite file path.
//   - SecretKey: secret the password sealer derives its key from.
//   - S3*: object storage settings for transcription uploads.
//   - StorageBaseURL: public URL prefix the recognizer reads objects from.
//   - STT*: speech-to-text backend endpoints and key.
//   - PollInterval / MaxPollAttempts: recognition polling budget.
//   - LLMProvider: "yandex" or "azure".
//   - FeedbackChatID / ErrorsChatID: operator-facing channels.
type Config struct {
	BotToken    string
	DatabaseDSN string
	SecretKey   string

	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	StorageBaseURL    string

	STTAPIKey       string
	STTRecognizeURL string
	STTOperationURL string
	PollInterval    time.Duration
	MaxPollAttempts int

	LLMProvider         string
	YandexAPIKey        string
	YandexModelURI      string
	YandexCompletionURL string
	AzureEndpoint       string
	AzureAPIKey         string

	LicenseBaseURL string

	FeedbackChatID int64
	ErrorsChatID   int64

	MetricsAddr string
	LogLevel    string
	LogFile     string
}

// LoadDefaults populates Config with development defaults. Credentials are
// intentionally empty and must come from the environment.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "users.db"
	c.S3Region = "ru-central1"
	c.S3Endpoint = "https://storage.yandexcloud.net"
	c.S3Bucket = "scribebot"
	c.StorageBaseURL = "https://storage.yandexcloud.net"
	c.STTRecognizeURL = "https://transcribe.api.cloud.yandex.net/speech/stt/v2/longRunningRecognize"
	c.STTOperationURL = "https://operation.api.cloud.yandex.net/operations"
	c.PollInterval = 5 * time.Second
	c.MaxPollAttempts = 5
	c.LLMProvider = "yandex"
	c.YandexCompletionURL = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"
	c.LicenseBaseURL = "https://pay.fait.gl"
	c.MetricsAddr = ":9090"
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment (including a .env file if present) and finally from
// command-line flags. Later sources take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
