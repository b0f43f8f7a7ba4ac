package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mpetrovs/scribebot/internal/common"
)

// TelegramMessenger adapts the Telegram Bot API to the Messenger
// interface.
type TelegramMessenger struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
}

func NewTelegramMessenger(token string) (*TelegramMessenger, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}

	return &TelegramMessenger{
		api:        api,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (t *TelegramMessenger) Updates(ctx context.Context) <-chan Update {
	out := make(chan Update)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	in := t.api.GetUpdatesChan(cfg)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				t.api.StopReceivingUpdates()
				return
			case upd, ok := <-in:
				if !ok {
					return
				}
				converted := convertUpdate(upd)
				if converted == nil {
					continue
				}
				select {
				case out <- *converted:
				case <-ctx.Done():
					t.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()

	return out
}

func (t *TelegramMessenger) SendText(ctx context.Context, chatID int64, text string, replyTo int) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (t *TelegramMessenger) SendDocument(ctx context.Context, chatID int64, name string, data []byte, replyTo int) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	if replyTo != 0 {
		doc.ReplyToMessageID = replyTo
	}
	if _, err := t.api.Send(doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

func (t *TelegramMessenger) SendOptions(ctx context.Context, chatID int64, text string, options []Option) error {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, o := range options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(o.Text, o.Data)))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send options: %w", err)
	}
	return nil
}

func (t *TelegramMessenger) AnswerCallback(ctx context.Context, callbackID string) error {
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// DownloadFile fetches a Telegram-hosted file into dstPath. Telegram
// refuses to serve bot files above 20 MB, which surfaces here as an
// API error.
func (t *TelegramMessenger) DownloadFile(ctx context.Context, fileID, dstPath string) error {
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return fmt.Errorf("resolve file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download file %s: %w: %v", fileID, common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return common.NewStatusError("download file "+fileID, resp.StatusCode)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create %s: %w: %v", dstPath, common.ErrFileAccess, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w: %v", dstPath, common.ErrFileAccess, err)
	}
	return nil
}

func convertUpdate(u tgbotapi.Update) *Update {
	if u.CallbackQuery != nil {
		cb := &Callback{
			ID:     u.CallbackQuery.ID,
			UserID: u.CallbackQuery.From.ID,
			Data:   u.CallbackQuery.Data,
		}
		if u.CallbackQuery.Message != nil {
			cb.ChatID = u.CallbackQuery.Message.Chat.ID
		}
		return &Update{Callback: cb}
	}

	if u.Message == nil || u.Message.From == nil {
		return nil
	}

	m := u.Message
	msg := &Message{
		ID:     m.MessageID,
		ChatID: m.Chat.ID,
		UserID: m.From.ID,
		Text:   m.Text,
		Media:  extractMedia(m),
	}
	if m.IsCommand() {
		msg.Command = m.Command()
	}
	if m.ReplyToMessage != nil {
		msg.Reply = &Reply{Text: m.ReplyToMessage.Text}
		if m.ReplyToMessage.Document != nil {
			msg.Reply.DocumentID = m.ReplyToMessage.Document.FileID
		}
	}

	return &Update{Message: msg}
}

// extractMedia picks the transcribable attachment, if any. A document
// with an audio/video mime type wins over the typed fields so that
// files sent "as file" are still processed.
func extractMedia(m *tgbotapi.Message) *Media {
	var media *Media
	switch {
	case m.Audio != nil:
		media = &Media{FileID: m.Audio.FileID, Kind: MediaAudio}
	case m.Video != nil:
		media = &Media{FileID: m.Video.FileID, Kind: MediaVideo}
	case m.Voice != nil:
		media = &Media{FileID: m.Voice.FileID, Kind: MediaVoice}
	}

	if m.Document != nil {
		mime := m.Document.MimeType
		if strings.Contains(mime, "audio") || strings.Contains(mime, "video") {
			media = &Media{FileID: m.Document.FileID, Kind: MediaDocument}
		}
	}

	return media
}
