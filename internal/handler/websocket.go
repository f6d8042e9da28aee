package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"lifelink/internal/config"
	"lifelink/internal/domain"
	"lifelink/internal/hub"
	"lifelink/internal/middleware"
	"lifelink/internal/service"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

const sendTimeout = 10 * time.Second

type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RoomEvent carries the key for join_room and leave_room.
type RoomEvent struct {
	Room string `json:"room" validate:"required,max=255"`
}

type JoinConversationEvent struct {
	PeerID   int64  `json:"peer_id" validate:"required,gt=0"`
	PeerType string `json:"peer_type" validate:"required,oneof=donor patient"`
}

type SendMessageEvent struct {
	Room         string `json:"room" validate:"max=255"`
	SenderID     int64  `json:"sender_id" validate:"required,gt=0"`
	SenderType   string `json:"sender_type" validate:"required,oneof=donor patient"`
	ReceiverID   int64  `json:"receiver_id" validate:"required,gt=0"`
	ReceiverType string `json:"receiver_type" validate:"required,oneof=donor patient"`
	Message      string `json:"message" validate:"required"`
}

type WebSocketHandler struct {
	relay    service.Relay
	hub      *hub.Hub
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	validate *validator.Validate
	log      logger.Logger
}

func NewWebSocketHandler(relay service.Relay, h *hub.Hub, cfg *config.Config, log logger.Logger) *WebSocketHandler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &WebSocketHandler{
		relay: relay,
		hub:   h,
		cfg:   cfg.WebSocket,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     middleware.OriginAllowed(cfg.Server.AllowedOrigins),
		},
		validate: validate,
		log:      log,
	}
}

// HandleChat upgrades the request and serves the connection until it closes. Token
// checking happens in middleware, so an authenticated identity is already attached.
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	var identity *domain.Identity
	if ident, ok := middleware.ParticipantFromContext(c); ok {
		identity = &ident
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := hub.NewClient(conn, identity, h.cfg, h.log)
	fields := []interface{}{"client_id", client.ID()}
	if identity != nil {
		fields = append(fields, "participant", identity.String())
	}
	h.log.Info("Chat connection opened", fields...)

	go client.WritePump()
	client.ReadPump(h.hub, h.dispatch)

	h.log.Info("Chat connection closed", "client_id", client.ID())
}

func (h *WebSocketHandler) dispatch(client *hub.Client, raw []byte) {
	var in inboundEvent
	if err := json.Unmarshal(raw, &in); err != nil {
		h.replyError(client, "malformed event")
		return
	}

	switch in.Event {
	case domain.EventJoinRoom:
		var ev RoomEvent
		if !h.decode(client, in.Data, &ev) {
			return
		}
		if err := h.relay.Join(client, ev.Room); err != nil {
			h.replyError(client, err.Error())
			return
		}
		client.SendJSON(domain.Envelope{Event: domain.EventJoined, Data: gin.H{"room": ev.Room}})

	case domain.EventLeaveRoom:
		var ev RoomEvent
		if !h.decode(client, in.Data, &ev) {
			return
		}
		h.relay.Leave(client, ev.Room)
		client.SendJSON(domain.Envelope{Event: domain.EventLeft, Data: gin.H{"room": ev.Room}})

	case domain.EventJoinConversation:
		var ev JoinConversationEvent
		if !h.decode(client, in.Data, &ev) {
			return
		}
		self, ok := client.Identity()
		if !ok {
			h.replyError(client, "join_conversation requires an authenticated connection")
			return
		}
		peer, err := domain.NewIdentity(ev.PeerID, ev.PeerType)
		if err != nil {
			h.replyError(client, err.Error())
			return
		}
		room, err := h.relay.JoinConversation(client, self, peer)
		if err != nil {
			h.replyError(client, err.Error())
			return
		}
		client.SendJSON(domain.Envelope{Event: domain.EventJoined, Data: gin.H{"room": room}})

	case domain.EventSendMessage:
		var ev SendMessageEvent
		if !h.decode(client, in.Data, &ev) {
			return
		}
		h.send(client, ev)

	default:
		h.replyError(client, fmt.Sprintf("unknown event %q", in.Event))
	}
}

func (h *WebSocketHandler) send(client *hub.Client, ev SendMessageEvent) {
	sender, err := domain.NewIdentity(ev.SenderID, ev.SenderType)
	if err != nil {
		h.replyError(client, err.Error())
		return
	}
	receiver, err := domain.NewIdentity(ev.ReceiverID, ev.ReceiverType)
	if err != nil {
		h.replyError(client, err.Error())
		return
	}
	if self, ok := client.Identity(); ok && !self.Equal(sender) {
		h.replyError(client, "sender does not match the authenticated participant")
		return
	}

	room := ev.Room
	if room == "" {
		room = domain.RoomKey(sender, receiver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	// The sender sees its own message through the room broadcast.
	if _, err := h.relay.Send(ctx, service.SendCommand{
		RoomKey:  room,
		Sender:   sender,
		Receiver: receiver,
		Text:     ev.Message,
	}); err != nil {
		if apperrors.Is(err, apperrors.ErrValidation) {
			h.replyError(client, err.Error())
			return
		}
		h.log.Error("Failed to send chat message", "error", err, "room", room)
		h.replyError(client, "message could not be stored")
	}
}

func (h *WebSocketHandler) decode(client *hub.Client, data json.RawMessage, dst interface{}) bool {
	if len(data) == 0 {
		h.replyError(client, "missing event data")
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		h.replyError(client, "malformed event data")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if apperrors.As(err, &verrs) {
			fields := lo.Map(verrs, func(fe validator.FieldError, _ int) string { return fe.Field() })
			h.replyError(client, "invalid fields: "+strings.Join(lo.Uniq(fields), ", "))
			return false
		}
		h.replyError(client, err.Error())
		return false
	}
	return true
}

func (h *WebSocketHandler) replyError(client *hub.Client, message string) {
	client.SendJSON(domain.Envelope{Event: domain.EventError, Data: gin.H{"message": message}})
}
