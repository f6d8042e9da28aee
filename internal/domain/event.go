package domain

// Websocket event names.
const (
	EventJoinRoom         = "join_room"
	EventJoinConversation = "join_conversation"
	EventLeaveRoom        = "leave_room"
	EventSendMessage      = "send_message"
	EventJoined           = "joined"
	EventLeft             = "left"
	EventReceiveMessage   = "receive_message"
	EventError            = "error"
)

// Envelope frames every websocket event in both directions.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}
