package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"lifelink/internal/domain"
	"lifelink/internal/middleware"
	"lifelink/internal/service"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

type ChatHandler struct {
	chatService service.ChatService
	relay       service.Relay
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, relay service.Relay, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		relay:       relay,
		log:         log,
	}
}

// pairFromQuery reads user1/type1/user2/type2.
func pairFromQuery(c *gin.Context) (domain.Identity, domain.Identity, error) {
	a, err := domain.ParseIdentity(c.Query("user1"), c.Query("type1"))
	if err != nil {
		return domain.Identity{}, domain.Identity{}, renameField(err, "user1", "type1")
	}
	b, err := domain.ParseIdentity(c.Query("user2"), c.Query("type2"))
	if err != nil {
		return domain.Identity{}, domain.Identity{}, renameField(err, "user2", "type2")
	}
	return a, b, nil
}

func renameField(err error, idField, kindField string) error {
	var ve *apperrors.ValidationError
	if !apperrors.As(err, &ve) {
		return err
	}
	switch ve.Field {
	case "participant_id":
		return apperrors.NewValidationError(idField, ve.Reason)
	case "participant_kind":
		return apperrors.NewValidationError(kindField, ve.Reason)
	}
	return err
}

func (h *ChatHandler) History(c *gin.Context) {
	a, b, err := pairFromQuery(c)
	if err != nil {
		h.log.Warn("Invalid history request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messages, err := h.chatService.History(c.Request.Context(), a, b)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, lo.Map(messages, func(m *domain.ChatMessage, _ int) domain.HistoryEntry {
		return domain.NewHistoryEntry(m)
	}))
}

func (h *ChatHandler) RoomKey(c *gin.Context) {
	a, b, err := pairFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": domain.RoomKey(a, b)})
}

type SendMessageRequest struct {
	Room         string `json:"room"`
	SenderID     int64  `json:"sender_id" binding:"required"`
	SenderType   string `json:"sender_type" binding:"required"`
	ReceiverID   int64  `json:"receiver_id" binding:"required"`
	ReceiverType string `json:"receiver_type" binding:"required"`
	Message      string `json:"message" binding:"required"`
}

// SendMessage relays a message over HTTP. The sender must be the authenticated
// participant; an empty room defaults to the pair's derived room.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid send message request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	sender, err := domain.NewIdentity(req.SenderID, req.SenderType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": renameField(err, "sender_id", "sender_type").Error()})
		return
	}
	receiver, err := domain.NewIdentity(req.ReceiverID, req.ReceiverType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": renameField(err, "receiver_id", "receiver_type").Error()})
		return
	}

	if self, ok := middleware.ParticipantFromContext(c); !ok || !self.Equal(sender) {
		_ = c.Error(fmt.Errorf("sender does not match the authenticated participant: %w", apperrors.ErrForbidden))
		return
	}

	room := req.Room
	if room == "" {
		room = domain.RoomKey(sender, receiver)
	}

	live, err := h.relay.Send(c.Request.Context(), service.SendCommand{
		RoomKey:  room,
		Sender:   sender,
		Receiver: receiver,
		Text:     req.Message,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, live)
}
