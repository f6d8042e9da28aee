package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"lifelink/internal/broker"
	"lifelink/internal/domain"
	"lifelink/internal/hub"
	"lifelink/internal/metrics"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

type SendCommand struct {
	RoomKey  string
	Sender   domain.Identity
	Receiver domain.Identity
	Text     string
}

// Relay fans stored messages out to the live members of a room.
type Relay interface {
	// Join accepts any non-empty room key; callers that know both identities should
	// prefer JoinConversation.
	Join(member hub.Member, roomKey string) error
	JoinConversation(member hub.Member, self, peer domain.Identity) (string, error)
	Leave(member hub.Member, roomKey string)
	// Send stores the message, then broadcasts it. Nothing is broadcast when storing
	// fails; a broadcast failure after a successful store is logged, not returned.
	Send(ctx context.Context, cmd SendCommand) (*domain.LiveMessage, error)
}

type relay struct {
	chat      ChatService
	directory Directory
	hub       *hub.Hub
	broker    broker.Broker
	log       logger.Logger
}

func NewRelay(chat ChatService, directory Directory, h *hub.Hub, b broker.Broker, log logger.Logger) Relay {
	return &relay{
		chat:      chat,
		directory: directory,
		hub:       h,
		broker:    b,
		log:       log,
	}
}

func (r *relay) Join(member hub.Member, roomKey string) error {
	if strings.TrimSpace(roomKey) == "" {
		return apperrors.NewValidationError("room", "room key is required")
	}
	r.hub.Join(member, roomKey)
	return nil
}

func (r *relay) JoinConversation(member hub.Member, self, peer domain.Identity) (string, error) {
	if err := self.Validate(); err != nil {
		return "", err
	}
	if err := peer.Validate(); err != nil {
		return "", prefixField(err, "peer")
	}
	roomKey := domain.RoomKey(self, peer)
	r.hub.Join(member, roomKey)
	return roomKey, nil
}

func (r *relay) Leave(member hub.Member, roomKey string) {
	r.hub.Leave(member, roomKey)
}

func (r *relay) Send(ctx context.Context, cmd SendCommand) (*domain.LiveMessage, error) {
	if strings.TrimSpace(cmd.RoomKey) == "" {
		return nil, apperrors.NewValidationError("room", "room key is required")
	}

	msg, err := r.chat.Append(ctx, cmd.Sender, cmd.Receiver, cmd.Text)
	if err != nil {
		return nil, err
	}

	senderName, receiverName := r.resolveNames(ctx, msg.Sender, msg.Receiver)
	live := domain.NewLiveMessage(cmd.RoomKey, msg, senderName, receiverName)

	payload, err := json.Marshal(domain.Envelope{Event: domain.EventReceiveMessage, Data: live})
	if err != nil {
		return nil, fmt.Errorf("encode live message: %w", err)
	}

	if err := r.broker.Publish(ctx, cmd.RoomKey, payload); err != nil {
		metrics.BroadcastDeliveries.WithLabelValues(metrics.ResultPublishFailed).Inc()
		r.log.Error("Failed to publish chat message", "error", err, "room", cmd.RoomKey, "message_id", msg.ID)
	}
	return live, nil
}

func (r *relay) resolveNames(ctx context.Context, sender, receiver domain.Identity) (string, string) {
	var senderName, receiverName string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		senderName = r.displayName(gctx, sender)
		return nil
	})
	g.Go(func() error {
		receiverName = r.displayName(gctx, receiver)
		return nil
	})
	_ = g.Wait()
	return senderName, receiverName
}

// displayName falls back to the kind's label; names are cosmetic.
func (r *relay) displayName(ctx context.Context, ident domain.Identity) string {
	name, found, err := r.directory.DisplayName(ctx, ident)
	if err != nil {
		r.log.Warn("Display name lookup failed", "error", err, "participant", ident.String())
	}
	if err != nil || !found {
		metrics.NameFallbacks.WithLabelValues(string(ident.Kind)).Inc()
		return ident.Kind.Label()
	}
	return name
}
