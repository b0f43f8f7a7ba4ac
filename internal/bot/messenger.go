package bot

import "context"

// MediaKind classifies an inbound attachment.
type MediaKind string

const (
	MediaAudio    MediaKind = "audio"
	MediaVideo    MediaKind = "video"
	MediaVoice    MediaKind = "voice"
	MediaDocument MediaKind = "document"
)

// Media references a downloadable attachment.
type Media struct {
	FileID string
	Kind   MediaKind
}

// Reply carries the content of the message being replied to.
type Reply struct {
	Text       string
	DocumentID string
}

// Message is an inbound chat message, decoupled from the platform
// library's types.
type Message struct {
	ID      int
	ChatID  int64
	UserID  int64
	Text    string
	Command string
	Media   *Media
	Reply   *Reply
}

// Callback is a button press on an inline keyboard.
type Callback struct {
	ID     string
	ChatID int64
	UserID int64
	Data   string
}

// Update is one inbound event from the messaging platform.
type Update struct {
	Message  *Message
	Callback *Callback
}

// Option is one inline-keyboard button.
type Option struct {
	Text string
	Data string
}

// Messenger is the messaging boundary: an external collaborator the
// orchestrator sends through and receives updates from.
type Messenger interface {
	// Updates streams inbound events until ctx is done, then closes
	// the channel.
	Updates(ctx context.Context) <-chan Update

	// SendText delivers a text message. replyTo of 0 means no reply
	// threading.
	SendText(ctx context.Context, chatID int64, text string, replyTo int) error

	// SendDocument delivers a file attachment from memory.
	SendDocument(ctx context.Context, chatID int64, name string, data []byte, replyTo int) error

	// SendOptions delivers a message with an inline keyboard.
	SendOptions(ctx context.Context, chatID int64, text string, options []Option) error

	// AnswerCallback acknowledges a keyboard button press.
	AnswerCallback(ctx context.Context, callbackID string) error

	// DownloadFile fetches a referenced file into dstPath.
	DownloadFile(ctx context.Context, fileID, dstPath string) error
}
