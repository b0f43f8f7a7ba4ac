package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mpetrovs/scribebot/internal/bot/config"
	"github.com/mpetrovs/scribebot/internal/completion"
	"github.com/mpetrovs/scribebot/internal/license"
	"github.com/mpetrovs/scribebot/internal/logging"
	"github.com/mpetrovs/scribebot/internal/metrics"
	"github.com/mpetrovs/scribebot/internal/store"
	"github.com/mpetrovs/scribebot/internal/transcribe"
)

// App assembles the bot process: storage, backends, messenger and the
// metrics endpoint.
type App struct {
	cfg     *config.Config
	log     logging.Logger
	manager *store.Manager
	bot     *Bot
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	manager, err := store.NewManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := manager.RunMigrations(ctx); err != nil {
		return nil, err
	}

	sealer, err := store.NewSealer(cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	st := store.New(manager.Users(), sealer)

	objects, err := transcribe.NewS3Store(ctx, transcribe.S3Config{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}

	mtr := metrics.New(prometheus.DefaultRegisterer)

	transcriber := transcribe.NewClient(transcribe.Config{
		APIKey:           cfg.STTAPIKey,
		RecognizeURL:     cfg.STTRecognizeURL,
		OperationBaseURL: cfg.STTOperationURL,
		StorageBaseURL:   cfg.StorageBaseURL,
		Bucket:           cfg.S3Bucket,
		PollInterval:     cfg.PollInterval,
		MaxPollAttempts:  cfg.MaxPollAttempts,
		PollRecorder:     mtr.RecordPollAttempts,
	}, objects, log)

	var completer completion.Provider
	if cfg.LLMProvider == "azure" {
		completer = completion.NewAzureOpenAI(cfg.AzureEndpoint, cfg.AzureAPIKey, "gpt-4")
	} else {
		completer = completion.NewYandexGPT(cfg.YandexCompletionURL, cfg.YandexAPIKey, cfg.YandexModelURI)
	}

	msgr, err := NewTelegramMessenger(cfg.BotToken)
	if err != nil {
		return nil, err
	}

	b := New(Deps{
		Config:      cfg,
		Logger:      log,
		Messenger:   msgr,
		Store:       st,
		Transcriber: transcriber,
		Completer:   completer,
		License:     license.NewClient(cfg.LicenseBaseURL, st, log),
		Metrics:     mtr,
	})

	return &App{cfg: cfg, log: log, manager: manager, bot: b}, nil
}

// Run serves updates until the context is cancelled or an interrupt
// arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.initSignalHandler(cancel)

	metricsSrv := a.startMetricsServer(ctx)

	a.log.Info(ctx, "bot started", "metrics_addr", a.cfg.MetricsAddr)
	a.bot.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn(ctx, "metrics server shutdown", "error", err)
	}

	if err := a.manager.Close(); err != nil {
		a.log.Warn(ctx, "store close", "error", err)
	}

	a.log.Info(ctx, "bot stopped")
	return nil
}

func (a *App) initSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()
}

func (a *App) startMetricsServer(ctx context.Context) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error(ctx, "metrics server failed", "error", err)
		}
	}()

	return srv
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	if cfg.LogFile != "" {
		return logging.NewFileLogger(cfg.LogFile, cfg.LogLevel)
	}
	return logging.NewDefaultLogger(slogLevel(cfg.LogLevel)), nil
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
