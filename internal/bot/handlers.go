package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mpetrovs/scribebot/internal/bot/fsm"
	"github.com/mpetrovs/scribebot/internal/common"
	"github.com/mpetrovs/scribebot/internal/logging"
	"github.com/mpetrovs/scribebot/internal/media"
)

// bigFileMarker appears in platform errors for files above the
// download size limit. Matched by substring and surfaced verbatim.
const bigFileMarker = "file is too big"

const (
	msgPromptEmail    = "Please provide your email."
	msgPromptPassword = "Please provide your password."
	msgInvalidEmail   = "Please provide a valid email."
	msgEmailSaved     = "Your email has been saved. Please provide your password."
	msgPasswordSaved  = "Your password has been saved."
	msgEmailError     = "Произошла ошибка при обработке email."
	msgPasswordError  = "Произошла ошибка при обработке пароля."

	msgPromptFeedback = "Please write your feedback."
	msgFeedbackSent   = "Your feedback has been sent. Thank you!"

	msgChooseOption  = "Выберите опцию:"
	msgGenericError  = "Произошла ошибка при обработке запроса."
	msgLicenseFailed = "Не удалось проверить подписку. Попробуйте позже."

	msgHelp = `Привет. Что я могу делать?
Отправь мне сообщение с видео или аудио и я пришлю тебе в ответ транскрибацию разговора.
А ещё я понимаю о чем шла речь в разговоре и готов ответить на любые вопросы, например, спроси меня: "О чем шла речь?" "О чем договорились? ".
Меня можно развернуть изолированно и интегрировать с любыми CRM.`
)

func (b *Bot) handleCommand(ctx context.Context, log logging.Logger, msg Message) {
	switch msg.Command {
	case "help", "start":
		b.send(ctx, log, msg.ChatID, msgHelp, msg.ID)
	case "feedback":
		b.states.Set(msg.UserID, fsm.StateAwaitingFeedback)
		b.send(ctx, log, msg.ChatID, msgPromptFeedback, 0)
	case "buy":
		b.handleBuy(ctx, log, msg)
	case "balance":
		b.handleBalance(ctx, log, msg)
	case "sub":
		b.handleSub(ctx, log, msg)
	default:
		log.Debug(ctx, "unknown command ignored", "command", msg.Command)
	}
}

func (b *Bot) handleBuy(ctx context.Context, log logging.Logger, msg Message) {
	options := []Option{
		{Text: "Подписка 30 минут в день 800 рублей в месяц", Data: "plan1"},
		{Text: "Подписка 60 минут в день 1700 рублей в месяц", Data: "plan2"},
		{Text: "Подписка 120 минут в день 2500 рублей в месяц", Data: "plan3"},
	}
	if err := b.msgr.SendOptions(ctx, msg.ChatID, msgChooseOption, options); err != nil {
		log.Error(ctx, "options delivery failed", "chat_id", msg.ChatID, "error", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, log logging.Logger, cb Callback) {
	switch cb.Data {
	case "plan1":
		b.send(ctx, log, cb.ChatID, "Вы выбрали 1", 0)
	case "plan2":
		b.send(ctx, log, cb.ChatID, "Вы выбрали 2", 0)
	case "plan3":
		b.send(ctx, log, cb.ChatID, "Вы выбрали 3", 0)
	}
	if err := b.msgr.AnswerCallback(ctx, cb.ID); err != nil {
		log.Error(ctx, "callback answer failed", "callback_id", cb.ID, "error", err)
	}
}

func (b *Bot) handleBalance(ctx context.Context, log logging.Logger, msg Message) {
	maxMinutes, usedMinutes, err := b.store.GetMinutes(ctx, msg.UserID)
	if err != nil {
		b.reportError(ctx, log, msg, err)
		return
	}
	b.send(ctx, log, msg.ChatID,
		fmt.Sprintf("Максимум минут: %d\nИспользовано минут: %d", maxMinutes, usedMinutes), 0)
}

func (b *Bot) handleSub(ctx context.Context, log logging.Logger, msg Message) {
	email, password, ok := b.gate(ctx, log, msg)
	if !ok {
		return
	}

	resp, err := b.license.OwnedGoods(ctx, msg.UserID, email, password)
	if err != nil {
		b.reportError(ctx, log, msg, err)
		return
	}

	var sb strings.Builder
	for _, good := range resp.Data.Goods {
		sb.WriteString(good.Name)
		sb.WriteString("\n")
	}
	b.send(ctx, log, msg.ChatID, "Ваши подписки:\n"+sb.String(), 0)
}

// processEmail handles the reply to the email prompt. An invalid email
// re-prompts without changing state, so the user can retry.
func (b *Bot) processEmail(ctx context.Context, log logging.Logger, msg Message) {
	email := strings.TrimSpace(msg.Text)
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		b.send(ctx, log, msg.ChatID, msgInvalidEmail, 0)
		return
	}

	err := b.store.AddUser(ctx, msg.UserID, email)
	if errors.Is(err, common.ErrAlreadyExists) {
		// The row can predate registration (minutes upsert); fill the
		// email in rather than leaving it NULL.
		err = b.store.SetEmail(ctx, msg.UserID, email)
	}
	if err != nil {
		log.Error(ctx, "email registration failed", "user_id", msg.UserID, "error", err)
		b.send(ctx, log, msg.ChatID, msgEmailError, 0)
		return
	}

	log.Info(ctx, "email registered", "user_id", msg.UserID)
	b.states.Set(msg.UserID, fsm.StateAwaitingPassword)
	b.send(ctx, log, msg.ChatID, msgEmailSaved, 0)
}

func (b *Bot) processPassword(ctx context.Context, log logging.Logger, msg Message) {
	if err := b.store.SetPassword(ctx, msg.UserID, msg.Text); err != nil {
		log.Error(ctx, "password save failed", "user_id", msg.UserID, "error", err)
		b.send(ctx, log, msg.ChatID, msgPasswordError, 0)
		b.states.Clear(msg.UserID)
		return
	}

	log.Info(ctx, "password saved", "user_id", msg.UserID)
	b.states.Clear(msg.UserID)
	b.send(ctx, log, msg.ChatID, msgPasswordSaved, 0)
}

func (b *Bot) processFeedback(ctx context.Context, log logging.Logger, msg Message) {
	if b.cfg.FeedbackChatID != 0 {
		b.send(ctx, log, b.cfg.FeedbackChatID, msg.Text, 0)
	}
	b.states.Clear(msg.UserID)
	b.send(ctx, log, msg.ChatID, msgFeedbackSent, 0)
}

// handleMedia runs the transcription pipeline for an audio or video
// attachment.
func (b *Bot) handleMedia(ctx context.Context, log logging.Logger, msg Message) {
	if _, _, ok := b.gate(ctx, log, msg); !ok {
		return
	}

	start := time.Now()
	if err := b.processMedia(ctx, log, msg); err != nil {
		b.metrics.RecordTranscription("failure", durationSeconds(start))
		log.Error(ctx, "media processing failed", "user_id", msg.UserID, "error", err)
		if strings.Contains(err.Error(), bigFileMarker) {
			b.send(ctx, log, msg.ChatID, bigFileMarker, msg.ID)
		} else {
			b.send(ctx, log, msg.ChatID, msgGenericError, msg.ID)
		}
		b.notifyOperator(ctx, log, "Failed to process media message "+err.Error())
		return
	}
	b.metrics.RecordTranscription("success", durationSeconds(start))
}

func (b *Bot) processMedia(ctx context.Context, log logging.Logger, msg Message) error {
	src := media.TempFilePath("")
	defer media.Cleanup(src)

	if err := b.msgr.DownloadFile(ctx, msg.Media.FileID, src); err != nil {
		return fmt.Errorf("download media: %w", err)
	}

	audioPath, cleanup, err := b.transcode(ctx, src)
	if err != nil {
		return fmt.Errorf("transcode media: %w", err)
	}
	defer cleanup()

	text, err := b.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return err
	}
	log.Info(ctx, "transcription complete", "user_id", msg.UserID, "chars", len(text))

	return b.deliver(ctx, msg, text)
}

// handleText answers questions asked as replies to earlier transcripts.
// Plain text that replies to nothing is ignored.
func (b *Bot) handleText(ctx context.Context, log logging.Logger, msg Message) {
	if _, _, ok := b.gate(ctx, log, msg); !ok {
		return
	}
	if msg.Reply == nil {
		return
	}

	contextText, err := b.extractReplyContext(ctx, msg)
	if err != nil {
		b.metrics.RecordCompletion("failure")
		b.reportError(ctx, log, msg, err)
		return
	}

	prompt := fmt.Sprintf("Context: \n%s\nPrompt:\n%s", contextText, msg.Text)
	answer, err := b.completer.Complete(ctx, prompt)
	if err != nil {
		b.metrics.RecordCompletion("failure")
		b.reportError(ctx, log, msg, err)
		return
	}
	b.metrics.RecordCompletion("success")

	if err := b.deliver(ctx, msg, answer); err != nil {
		log.Error(ctx, "answer delivery failed", "user_id", msg.UserID, "error", err)
	}
}

// extractReplyContext returns the replied-to message text, or the content
// of the replied-to document when one is attached.
func (b *Bot) extractReplyContext(ctx context.Context, msg Message) (string, error) {
	if msg.Reply.DocumentID == "" {
		return msg.Reply.Text, nil
	}

	tmp := media.TempFilePath(".txt")
	defer media.Cleanup(tmp)

	if err := b.msgr.DownloadFile(ctx, msg.Reply.DocumentID, tmp); err != nil {
		return "", fmt.Errorf("download reply document: %w", err)
	}
	data, err := media.ReadContent(tmp)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
