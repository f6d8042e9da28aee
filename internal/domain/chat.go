package domain

import (
	"strings"
	"time"
	"unicode"

	apperrors "lifelink/pkg/errors"
)

// TimestampLayout is the display format of chat timestamps (YYYY-MM-DD HH:MM).
const TimestampLayout = "2006-01-02 15:04"

const roomKeyPrefix = "chat:"

// ChatMessage is immutable once stored. ID and CreatedAt are assigned by the store.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Sender    Identity  `json:"sender"`
	Receiver  Identity  `json:"receiver"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewChatMessage validates addressing and text. Whitespace-only text counts as empty.
func NewChatMessage(sender, receiver Identity, text string) (*ChatMessage, error) {
	if err := sender.Validate(); err != nil {
		return nil, withField(err, "sender")
	}
	if err := receiver.Validate(); err != nil {
		return nil, withField(err, "receiver")
	}
	if strings.IndexFunc(text, func(r rune) bool { return !unicode.IsSpace(r) }) < 0 {
		return nil, apperrors.NewValidationError("text", "message text must not be empty")
	}
	return &ChatMessage{Sender: sender, Receiver: receiver, Text: text}, nil
}

func (m *ChatMessage) ConversationKey() string {
	return ConversationKey(m.Sender, m.Receiver)
}

// Involves reports whether the message belongs to the conversation of a and b.
func (m *ChatMessage) Involves(a, b Identity) bool {
	return (m.Sender.Equal(a) && m.Receiver.Equal(b)) || (m.Sender.Equal(b) && m.Receiver.Equal(a))
}

// ConversationKey is the canonical form of the unordered pair {a, b}.
func ConversationKey(a, b Identity) string {
	if b.Less(a) {
		a, b = b, a
	}
	return a.String() + "|" + b.String()
}

// RoomKey derives the live relay room for a conversation. Both sides get the same key.
func RoomKey(a, b Identity) string {
	return roomKeyPrefix + ConversationKey(a, b)
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// LiveMessage is the event broadcast to a room after a message is stored.
type LiveMessage struct {
	ID           int64           `json:"id"`
	Room         string          `json:"room"`
	SenderID     int64           `json:"sender_id"`
	SenderType   ParticipantKind `json:"sender_type"`
	SenderName   string          `json:"sender_name"`
	ReceiverID   int64           `json:"receiver_id"`
	ReceiverType ParticipantKind `json:"receiver_type"`
	ReceiverName string          `json:"receiver_name"`
	Message      string          `json:"message"`
	Timestamp    string          `json:"timestamp"`
}

func NewLiveMessage(room string, msg *ChatMessage, senderName, receiverName string) *LiveMessage {
	return &LiveMessage{
		ID:           msg.ID,
		Room:         room,
		SenderID:     msg.Sender.ID,
		SenderType:   msg.Sender.Kind,
		SenderName:   senderName,
		ReceiverID:   msg.Receiver.ID,
		ReceiverType: msg.Receiver.Kind,
		ReceiverName: receiverName,
		Message:      msg.Text,
		Timestamp:    FormatTimestamp(msg.CreatedAt),
	}
}

// HistoryEntry is one row of a conversation history response.
type HistoryEntry struct {
	ID           int64           `json:"id"`
	SenderID     int64           `json:"sender_id"`
	SenderType   ParticipantKind `json:"sender_type"`
	ReceiverID   int64           `json:"receiver_id"`
	ReceiverType ParticipantKind `json:"receiver_type"`
	Message      string          `json:"message"`
	Timestamp    string          `json:"timestamp"`
	CreatedAt    time.Time       `json:"created_at"`
}

func NewHistoryEntry(msg *ChatMessage) HistoryEntry {
	return HistoryEntry{
		ID:           msg.ID,
		SenderID:     msg.Sender.ID,
		SenderType:   msg.Sender.Kind,
		ReceiverID:   msg.Receiver.ID,
		ReceiverType: msg.Receiver.Kind,
		Message:      msg.Text,
		Timestamp:    FormatTimestamp(msg.CreatedAt),
		CreatedAt:    msg.CreatedAt,
	}
}

func withField(err error, prefix string) error {
	var ve *apperrors.ValidationError
	if apperrors.As(err, &ve) {
		return apperrors.NewValidationError(prefix+"_"+trimFieldPrefix(ve.Field), ve.Reason)
	}
	return err
}

func trimFieldPrefix(field string) string {
	switch field {
	case "participant_kind":
		return "type"
	case "participant_id":
		return "id"
	default:
		return field
	}
}
