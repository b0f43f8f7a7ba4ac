// Package bot wires inbound chat updates to the transcription,
// completion, licensing and storage backends.
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/mpetrovs/scribebot/internal/bot/config"
	"github.com/mpetrovs/scribebot/internal/bot/fsm"
	"github.com/mpetrovs/scribebot/internal/common"
	"github.com/mpetrovs/scribebot/internal/completion"
	"github.com/mpetrovs/scribebot/internal/license"
	"github.com/mpetrovs/scribebot/internal/logging"
	"github.com/mpetrovs/scribebot/internal/media"
	"github.com/mpetrovs/scribebot/internal/metrics"
	"github.com/mpetrovs/scribebot/internal/store"
)

// Transcriber turns a local audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// LicenseChecker verifies the user's subscription with the licensing
// backend.
type LicenseChecker interface {
	OwnedGoods(ctx context.Context, userID int64, email, password string) (*license.GoodsResponse, error)
}

// Deps collects the orchestrator's collaborators.
type Deps struct {
	Config      *config.Config
	Logger      logging.Logger
	Messenger   Messenger
	Store       *store.Store
	Transcriber Transcriber
	Completer   completion.Provider
	License     LicenseChecker
	Metrics     *metrics.Metrics

	// Transcode defaults to media.TranscodeToMP3.
	Transcode media.TranscodeFunc
}

// Bot dispatches inbound updates to handlers, gating paid actions behind
// registration and a subscription check.
type Bot struct {
	cfg         *config.Config
	log         logging.Logger
	msgr        Messenger
	store       *store.Store
	states      *fsm.Manager
	transcriber Transcriber
	completer   completion.Provider
	license     LicenseChecker
	transcode   media.TranscodeFunc
	metrics     *metrics.Metrics
}

func New(d Deps) *Bot {
	if d.Transcode == nil {
		d.Transcode = media.TranscodeToMP3
	}

	return &Bot{
		cfg:         d.Config,
		log:         d.Logger,
		msgr:        d.Messenger,
		store:       d.Store,
		states:      fsm.NewManager(),
		transcriber: d.Transcriber,
		completer:   d.Completer,
		license:     d.License,
		transcode:   d.Transcode,
		metrics:     d.Metrics,
	}
}

// Run consumes updates until the stream closes, handling each one on its
// own goroutine.
func (b *Bot) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for upd := range b.msgr.Updates(ctx) {
		wg.Add(1)
		go func(u Update) {
			defer wg.Done()
			b.handleUpdate(ctx, u)
		}(upd)
	}
	wg.Wait()
}

func (b *Bot) handleUpdate(ctx context.Context, u Update) {
	log := b.log.With("correlation_id", ksuid.New().String())

	if u.Callback != nil {
		b.metrics.RecordUpdate("callback")
		b.handleCallback(ctx, log, *u.Callback)
		return
	}
	if u.Message == nil {
		return
	}
	msg := *u.Message

	if msg.Command != "" {
		b.metrics.RecordUpdate("command")
		b.handleCommand(ctx, log, msg)
		return
	}

	switch b.states.Get(msg.UserID) {
	case fsm.StateAwaitingEmail:
		b.metrics.RecordUpdate("state")
		b.processEmail(ctx, log, msg)
	case fsm.StateAwaitingPassword:
		b.metrics.RecordUpdate("state")
		b.processPassword(ctx, log, msg)
	case fsm.StateAwaitingFeedback:
		b.metrics.RecordUpdate("state")
		b.processFeedback(ctx, log, msg)
	default:
		switch {
		case msg.Media != nil:
			b.metrics.RecordUpdate("media")
			b.handleMedia(ctx, log, msg)
		case msg.Text != "":
			b.metrics.RecordUpdate("text")
			b.handleText(ctx, log, msg)
		}
	}
}

// gate checks that the user has an email and password on file and an
// active subscription. Missing credentials start the registration flow;
// a failed subscription check is reported to the user and the operator.
// Returns the stored credentials when the user may proceed.
func (b *Bot) gate(ctx context.Context, log logging.Logger, msg Message) (email, password string, ok bool) {
	email, err := b.store.GetEmail(ctx, msg.UserID)
	if errors.Is(err, common.ErrNotFound) {
		b.states.Set(msg.UserID, fsm.StateAwaitingEmail)
		log.Info(ctx, "awaiting email", "user_id", msg.UserID)
		b.send(ctx, log, msg.ChatID, msgPromptEmail, 0)
		return "", "", false
	}
	if err != nil {
		b.reportError(ctx, log, msg, err)
		return "", "", false
	}

	password, err = b.store.GetPassword(ctx, msg.UserID)
	if errors.Is(err, common.ErrNotFound) {
		b.states.Set(msg.UserID, fsm.StateAwaitingPassword)
		log.Info(ctx, "awaiting password", "user_id", msg.UserID)
		b.send(ctx, log, msg.ChatID, msgPromptPassword, 0)
		return "", "", false
	}
	if err != nil {
		b.reportError(ctx, log, msg, err)
		return "", "", false
	}

	if _, err := b.license.OwnedGoods(ctx, msg.UserID, email, password); err != nil {
		b.metrics.RecordLicenseCheck("failure")
		log.Error(ctx, "subscription check failed", "user_id", msg.UserID, "error", err)
		b.send(ctx, log, msg.ChatID, msgLicenseFailed, msg.ID)
		b.notifyOperator(ctx, log, "Failed to verify subscription for user: "+err.Error())
		return "", "", false
	}
	b.metrics.RecordLicenseCheck("success")

	return email, password, true
}

// deliver sends text back in platform-sized pieces and attaches the full
// text as a document.
func (b *Bot) deliver(ctx context.Context, msg Message, text string) error {
	for _, piece := range splitMessage(text, messageLimit) {
		if err := b.msgr.SendText(ctx, msg.ChatID, piece, msg.ID); err != nil {
			return err
		}
	}
	return b.msgr.SendDocument(ctx, msg.ChatID, "file.txt", []byte(text), msg.ID)
}

// send delivers a message, logging delivery failures instead of
// propagating them.
func (b *Bot) send(ctx context.Context, log logging.Logger, chatID int64, text string, replyTo int) {
	if err := b.msgr.SendText(ctx, chatID, text, replyTo); err != nil {
		log.Error(ctx, "message delivery failed", "chat_id", chatID, "error", err)
	}
}

// reportError tells the user something went wrong and forwards the
// details to the operator channel.
func (b *Bot) reportError(ctx context.Context, log logging.Logger, msg Message, err error) {
	log.Error(ctx, "request failed", "user_id", msg.UserID, "error", err)
	b.send(ctx, log, msg.ChatID, msgGenericError, 0)
	b.notifyOperator(ctx, log, "Failed to process message "+err.Error())
}

func (b *Bot) notifyOperator(ctx context.Context, log logging.Logger, text string) {
	if b.cfg.ErrorsChatID == 0 {
		return
	}
	b.send(ctx, log, b.cfg.ErrorsChatID, text, 0)
}

func durationSeconds(start time.Time) float64 {
	return time.Since(start).Seconds()
}
