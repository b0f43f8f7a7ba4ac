package bot

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/mpetrovs/scribebot/internal/bot/config"
	"github.com/mpetrovs/scribebot/internal/license"
	"github.com/mpetrovs/scribebot/internal/logging"
	"github.com/mpetrovs/scribebot/internal/metrics"
	"github.com/mpetrovs/scribebot/internal/store"
)

const (
	testUserID   = int64(42)
	testChatID   = int64(100)
	errorsChat   = int64(-500)
	feedbackChat = int64(-600)
)

type sentText struct {
	chatID  int64
	text    string
	replyTo int
}

type sentDoc struct {
	chatID  int64
	name    string
	data    []byte
	replyTo int
}

type fakeMessenger struct {
	mu          sync.Mutex
	texts       []sentText
	docs        []sentDoc
	optionTexts []Option
	answered    []string
	downloadErr error
	fileData    string
}

func (f *fakeMessenger) Updates(ctx context.Context) <-chan Update {
	ch := make(chan Update)
	close(ch)
	return ch
}

func (f *fakeMessenger) SendText(ctx context.Context, chatID int64, text string, replyTo int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{chatID: chatID, text: text, replyTo: replyTo})
	return nil
}

func (f *fakeMessenger) SendDocument(ctx context.Context, chatID int64, name string, data []byte, replyTo int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, sentDoc{chatID: chatID, name: name, data: data, replyTo: replyTo})
	return nil
}

func (f *fakeMessenger) SendOptions(ctx context.Context, chatID int64, text string, options []Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{chatID: chatID, text: text})
	f.optionTexts = append(f.optionTexts, options...)
	return nil
}

func (f *fakeMessenger) AnswerCallback(ctx context.Context, callbackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, callbackID)
	return nil
}

func (f *fakeMessenger) DownloadFile(ctx context.Context, fileID, dstPath string) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}
	return os.WriteFile(dstPath, []byte(f.fileData), 0o600)
}

func (f *fakeMessenger) textsTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, t := range f.texts {
		if t.chatID == chatID {
			out = append(out, t.text)
		}
	}
	return out
}

type licenseCall struct {
	userID          int64
	email, password string
}

type fakeLicense struct {
	err   error
	calls []licenseCall
}

func (f *fakeLicense) OwnedGoods(ctx context.Context, userID int64, email, password string) (*license.GoodsResponse, error) {
	f.calls = append(f.calls, licenseCall{userID: userID, email: email, password: password})
	if f.err != nil {
		return nil, f.err
	}
	resp := &license.GoodsResponse{}
	resp.Data.Goods = []license.Good{{Name: "Подписка 30 минут"}}
	return resp, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	paths []string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f.paths = append(f.paths, audioPath)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeCompleter struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func passthroughTranscode(ctx context.Context, srcPath string) (string, func(), error) {
	return srcPath, func() {}, nil
}

type fixture struct {
	bot   *Bot
	msgr  *fakeMessenger
	store *store.Store
	lic   *fakeLicense
	tr    *fakeTranscriber
	comp  *fakeCompleter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	m, err := store.NewManager(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	require.NoError(t, m.RunMigrations(context.Background()))

	sealer, err := store.NewSealer("test-secret")
	require.NoError(t, err)
	st := store.New(m.Users(), sealer)

	f := &fixture{
		msgr:  &fakeMessenger{fileData: "media-bytes"},
		store: st,
		lic:   &fakeLicense{},
		tr:    &fakeTranscriber{text: "hello world"},
		comp:  &fakeCompleter{answer: "the answer"},
	}

	f.bot = New(Deps{
		Config:      &config.Config{ErrorsChatID: errorsChat, FeedbackChatID: feedbackChat},
		Logger:      logging.NewDefaultLogger(slog.LevelError),
		Messenger:   f.msgr,
		Store:       st,
		Transcriber: f.tr,
		Completer:   f.comp,
		License:     f.lic,
		Metrics:     metrics.New(prometheus.NewRegistry()),
		Transcode:   passthroughTranscode,
	})
	return f
}

func (f *fixture) register(t *testing.T, email, password string) {
	t.Helper()
	require.NoError(t, f.store.AddUser(context.Background(), testUserID, email))
	require.NoError(t, f.store.SetPassword(context.Background(), testUserID, password))
}

func (f *fixture) dispatch(msg Message) {
	f.bot.handleUpdate(context.Background(), Update{Message: &msg})
}

func mediaMsg(id int) Message {
	return Message{
		ID:     id,
		ChatID: testChatID,
		UserID: testUserID,
		Media:  &Media{FileID: "f1", Kind: MediaVoice},
	}
}

func textMsg(text string) Message {
	return Message{ID: 1, ChatID: testChatID, UserID: testUserID, Text: text}
}

func TestBot_RegistrationThenTranscription(t *testing.T) {
	f := newFixture(t)

	// Voice message from an unknown user starts the registration flow.
	f.dispatch(mediaMsg(10))
	require.Equal(t, []string{msgPromptEmail}, f.msgr.textsTo(testChatID))
	require.Empty(t, f.tr.paths)

	f.dispatch(textMsg("a@b.com"))
	require.Contains(t, f.msgr.textsTo(testChatID), msgEmailSaved)

	f.dispatch(textMsg("secret"))
	require.Contains(t, f.msgr.textsTo(testChatID), msgPasswordSaved)

	// Re-sent voice message now passes the gate and gets transcribed.
	f.dispatch(mediaMsg(11))

	require.Len(t, f.lic.calls, 1)
	require.Equal(t, licenseCall{userID: testUserID, email: "a@b.com", password: "secret"}, f.lic.calls[0])

	require.Len(t, f.tr.paths, 1)
	require.Contains(t, f.msgr.textsTo(testChatID), "hello world")

	require.Len(t, f.msgr.docs, 1)
	require.Equal(t, "file.txt", f.msgr.docs[0].name)
	require.Equal(t, "hello world", string(f.msgr.docs[0].data))
	require.Equal(t, 11, f.msgr.docs[0].replyTo)
}

func TestBot_InvalidEmailRepromptsWithoutStateChange(t *testing.T) {
	f := newFixture(t)

	f.dispatch(mediaMsg(10))
	f.dispatch(textMsg("not-an-email"))
	require.Contains(t, f.msgr.textsTo(testChatID), msgInvalidEmail)

	// The retry still lands in the email step.
	f.dispatch(textMsg("a@b.com"))
	require.Contains(t, f.msgr.textsTo(testChatID), msgEmailSaved)

	email, err := f.store.GetEmail(context.Background(), testUserID)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", email)
}

func TestBot_EmailRegistrationOnQuotaOnlyRow(t *testing.T) {
	f := newFixture(t)
	// A quota update can create the user row before registration; the
	// email step must still complete instead of re-prompting forever.
	require.NoError(t, f.store.SetMinutes(context.Background(), testUserID, 30, 0))

	f.dispatch(mediaMsg(10))
	require.Equal(t, []string{msgPromptEmail}, f.msgr.textsTo(testChatID))

	f.dispatch(textMsg("a@b.com"))
	require.Contains(t, f.msgr.textsTo(testChatID), msgEmailSaved)

	email, err := f.store.GetEmail(context.Background(), testUserID)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", email)

	f.dispatch(textMsg("secret"))
	require.Contains(t, f.msgr.textsTo(testChatID), msgPasswordSaved)
}

func TestBot_LicenseFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "secret")
	f.lic.err = errors.New("backend down")

	f.dispatch(mediaMsg(10))

	require.Contains(t, f.msgr.textsTo(testChatID), msgLicenseFailed)
	require.Empty(t, f.tr.paths)

	operator := f.msgr.textsTo(errorsChat)
	require.Len(t, operator, 1)
	require.Contains(t, operator[0], "backend down")
}

func TestBot_BigFileErrorSurfacedVerbatim(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "secret")
	f.msgr.downloadErr = errors.New("Bad Request: file is too big")

	f.dispatch(mediaMsg(10))

	require.Contains(t, f.msgr.textsTo(testChatID), bigFileMarker)
	require.NotContains(t, f.msgr.textsTo(testChatID), msgGenericError)
	operator := f.msgr.textsTo(errorsChat)
	require.Len(t, operator, 1)
	require.Contains(t, operator[0], "file is too big")
}

func TestBot_TranscriptionFailureReportedToUserAndOperator(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "secret")
	f.tr.err = errors.New("recognition exploded")

	f.dispatch(mediaMsg(10))

	require.Equal(t, []string{msgGenericError}, f.msgr.textsTo(testChatID))
	require.Contains(t, f.msgr.textsTo(errorsChat)[0], "recognition exploded")
}

func TestBot_LongTranscriptIsChunkedWithDocument(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "secret")
	f.tr.text = strings.Repeat("x", messageLimit+50)

	f.dispatch(mediaMsg(10))

	texts := f.msgr.textsTo(testChatID)
	require.Len(t, texts, 2)
	require.Equal(t, f.tr.text, strings.Join(texts, ""))

	require.Len(t, f.msgr.docs, 1)
	require.Equal(t, f.tr.text, string(f.msgr.docs[0].data))
}

func TestBot_ReplyTextGoesToCompletion(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "secret")

	msg := textMsg("О чем шла речь?")
	msg.Reply = &Reply{Text: "transcript body"}
	f.dispatch(msg)

	require.Len(t, f.comp.prompts, 1)
	require.Equal(t, "Context: \ntranscript body\nPrompt:\nО чем шла речь?", f.comp.prompts[0])
	require.Contains(t, f.msgr.textsTo(testChatID), "the answer")
	require.Len(t, f.msgr.docs, 1)
}

func TestBot_ReplyDocumentContentIsContext(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "secret")
	f.msgr.fileData = "full transcript from file"

	msg := textMsg("summarize")
	msg.Reply = &Reply{Text: "ignored", DocumentID: "doc-1"}
	f.dispatch(msg)

	require.Len(t, f.comp.prompts, 1)
	require.Contains(t, f.comp.prompts[0], "full transcript from file")
	require.NotContains(t, f.comp.prompts[0], "ignored")
}

func TestBot_NonReplyTextIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "secret")

	f.dispatch(textMsg("just chatting"))

	require.Empty(t, f.comp.prompts)
	require.Empty(t, f.msgr.textsTo(testChatID))
}

func TestBot_CompletionFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "secret")
	f.comp.err = errors.New("llm unavailable")

	msg := textMsg("question")
	msg.Reply = &Reply{Text: "context"}
	f.dispatch(msg)

	require.Contains(t, f.msgr.textsTo(testChatID), msgGenericError)
	require.Contains(t, f.msgr.textsTo(errorsChat)[0], "llm unavailable")
}

func TestBot_BalanceCommand(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SetMinutes(context.Background(), testUserID, 30, 12))

	msg := textMsg("/balance")
	msg.Command = "balance"
	f.dispatch(msg)

	require.Contains(t, f.msgr.textsTo(testChatID), "Максимум минут: 30\nИспользовано минут: 12")
}

func TestBot_BalanceCommandDefaultsToZero(t *testing.T) {
	f := newFixture(t)

	msg := textMsg("/balance")
	msg.Command = "balance"
	f.dispatch(msg)

	require.Contains(t, f.msgr.textsTo(testChatID), "Максимум минут: 0\nИспользовано минут: 0")
}

func TestBot_SubCommandListsGoods(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "secret")

	msg := textMsg("/sub")
	msg.Command = "sub"
	f.dispatch(msg)

	texts := f.msgr.textsTo(testChatID)
	require.Len(t, texts, 1)
	require.Equal(t, "Ваши подписки:\nПодписка 30 минут\n", texts[0])
}

func TestBot_FeedbackFlow(t *testing.T) {
	f := newFixture(t)

	msg := textMsg("/feedback")
	msg.Command = "feedback"
	f.dispatch(msg)
	require.Contains(t, f.msgr.textsTo(testChatID), msgPromptFeedback)

	f.dispatch(textMsg("great bot"))
	require.Contains(t, f.msgr.textsTo(feedbackChat), "great bot")
	require.Contains(t, f.msgr.textsTo(testChatID), msgFeedbackSent)

	// State cleared: the next plain text is no longer treated as feedback.
	f.dispatch(textMsg("hello again"))
	require.Len(t, f.msgr.textsTo(feedbackChat), 1)
}

func TestBot_BuyOptionsAndCallback(t *testing.T) {
	f := newFixture(t)

	msg := textMsg("/buy")
	msg.Command = "buy"
	f.dispatch(msg)

	require.Contains(t, f.msgr.textsTo(testChatID), msgChooseOption)
	require.Len(t, f.msgr.optionTexts, 3)

	f.bot.handleUpdate(context.Background(), Update{Callback: &Callback{
		ID:     "cb-1",
		ChatID: testChatID,
		UserID: testUserID,
		Data:   "plan2",
	}})

	require.Contains(t, f.msgr.textsTo(testChatID), "Вы выбрали 2")
	require.Equal(t, []string{"cb-1"}, f.msgr.answered)
}

func TestBot_HelpCommand(t *testing.T) {
	f := newFixture(t)

	msg := textMsg("/help")
	msg.Command = "help"
	f.dispatch(msg)

	texts := f.msgr.textsTo(testChatID)
	require.Len(t, texts, 1)
	require.Contains(t, texts[0], "транскрибацию")
}

func TestBot_PasswordPromptWhenEmailKnown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.AddUser(context.Background(), testUserID, "a@b.com"))

	f.dispatch(mediaMsg(10))
	require.Equal(t, []string{msgPromptPassword}, f.msgr.textsTo(testChatID))

	f.dispatch(textMsg("secret"))
	require.Contains(t, f.msgr.textsTo(testChatID), msgPasswordSaved)

	password, err := f.store.GetPassword(context.Background(), testUserID)
	require.NoError(t, err)
	require.Equal(t, "secret", password)
}
