package hub

import (
	"sync"

	"github.com/samber/lo"
	"lifelink/internal/metrics"
	"lifelink/pkg/logger"
)

// Member is anything the hub can fan a payload out to. Deliver must not block; it
// returns false when the payload could not be queued.
type Member interface {
	ID() string
	Deliver(payload []byte) bool
}

// Hub tracks live room membership. Rooms exist while they have at least one member.
type Hub struct {
	rooms       map[string]map[string]Member // room key -> member id -> member
	memberRooms map[string]map[string]struct{}
	mu          sync.RWMutex
	log         logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		rooms:       make(map[string]map[string]Member),
		memberRooms: make(map[string]map[string]struct{}),
		log:         log,
	}
}

// Join adds member to roomKey. Joining a room twice is a no-op.
func (h *Hub) Join(member Member, roomKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomKey]
	if !ok {
		members = make(map[string]Member)
		h.rooms[roomKey] = members
		metrics.Rooms.Set(float64(len(h.rooms)))
	}
	if _, already := members[member.ID()]; already {
		return
	}
	members[member.ID()] = member

	joined, ok := h.memberRooms[member.ID()]
	if !ok {
		joined = make(map[string]struct{})
		h.memberRooms[member.ID()] = joined
	}
	joined[roomKey] = struct{}{}

	h.log.Debug("member joined room", "member_id", member.ID(), "room", roomKey, "members", len(members))
}

func (h *Hub) Leave(member Member, roomKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(member.ID(), roomKey)
}

// Remove drops member from every room it joined.
func (h *Hub) Remove(member Member) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomKey := range h.memberRooms[member.ID()] {
		h.leaveLocked(member.ID(), roomKey)
	}
	delete(h.memberRooms, member.ID())
}

func (h *Hub) leaveLocked(memberID, roomKey string) {
	if members, ok := h.rooms[roomKey]; ok {
		delete(members, memberID)
		if len(members) == 0 {
			delete(h.rooms, roomKey)
			metrics.Rooms.Set(float64(len(h.rooms)))
		}
	}
	if joined, ok := h.memberRooms[memberID]; ok {
		delete(joined, roomKey)
		if len(joined) == 0 {
			delete(h.memberRooms, memberID)
		}
	}
}

// Broadcast delivers payload to the members of roomKey at call time and returns how
// many accepted it. Members that refuse a payload are evicted from all rooms.
func (h *Hub) Broadcast(roomKey string, payload []byte) int {
	h.mu.RLock()
	snapshot := lo.Values(h.rooms[roomKey])
	h.mu.RUnlock()

	delivered := 0
	var stale []Member
	for _, member := range snapshot {
		if member.Deliver(payload) {
			delivered++
			continue
		}
		stale = append(stale, member)
	}

	for _, member := range stale {
		h.log.Warn("dropping unresponsive member", "member_id", member.ID(), "room", roomKey)
		h.Remove(member)
	}

	metrics.BroadcastDeliveries.WithLabelValues(metrics.ResultDelivered).Add(float64(delivered))
	metrics.BroadcastDeliveries.WithLabelValues(metrics.ResultDropped).Add(float64(len(stale)))
	return delivered
}

func (h *Hub) RoomSize(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey])
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Rooms lists the rooms member currently belongs to.
func (h *Hub) Rooms(member Member) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Keys(h.memberRooms[member.ID()])
}
