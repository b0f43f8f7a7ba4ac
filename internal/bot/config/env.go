package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file
// in the working directory is loaded first; a missing file is not an error.
func parseEnv(cfg *Config) error {
	_ = godotenv.Load()

	setString(&cfg.BotToken, "TELEGRAM_TOKEN")
	setString(&cfg.DatabaseDSN, "DATABASE_DSN")
	setString(&cfg.SecretKey, "SECRET_KEY")

	setString(&cfg.S3Endpoint, "S3_ENDPOINT")
	setString(&cfg.S3Region, "S3_REGION")
	setString(&cfg.S3Bucket, "S3_BUCKET")
	setString(&cfg.S3AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&cfg.S3SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&cfg.StorageBaseURL, "STORAGE_BASE_URL")

	setString(&cfg.STTAPIKey, "YANDEX_API_KEY_STT")
	setString(&cfg.STTRecognizeURL, "STT_RECOGNIZE_URL")
	setString(&cfg.STTOperationURL, "STT_OPERATION_URL")

	setString(&cfg.LLMProvider, "LLM_PROVIDER")
	setString(&cfg.YandexAPIKey, "YANDEX_API_KEY")
	setString(&cfg.YandexModelURI, "YANDEX_MODEL_LINK")
	setString(&cfg.YandexCompletionURL, "YANDEX_COMPLETION_URL")
	setString(&cfg.AzureEndpoint, "AZURE_OPENAI_ENDPOINT")
	setString(&cfg.AzureAPIKey, "OPENAI_API_KEY")

	setString(&cfg.LicenseBaseURL, "LICENSE_BASE_URL")

	setString(&cfg.MetricsAddr, "METRICS_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFile, "LOG_FILE")

	if err := setInt64(&cfg.FeedbackChatID, "FEEDBACK_CHANNEL_ID"); err != nil {
		return err
	}
	if err := setInt64(&cfg.ErrorsChatID, "ERRORS_CHAT_ID"); err != nil {
		return err
	}

	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if v := os.Getenv("MAX_POLL_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_POLL_ATTEMPTS: %w", err)
		}
		cfg.MaxPollAttempts = n
	}

	return nil
}

func setString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}
