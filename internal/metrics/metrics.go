package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifelink_chat_messages_appended_total",
		Help: "Chat messages persisted to the message store",
	})

	// AppendFailures is labelled by reason: validation or storage.
	AppendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifelink_chat_append_failures_total",
		Help: "Rejected or failed chat message appends by reason",
	}, []string{"reason"})

	// BroadcastDeliveries is labelled by result: delivered, dropped or publish_failed.
	BroadcastDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifelink_chat_broadcast_deliveries_total",
		Help: "Per-member outcome of live relay broadcasts",
	}, []string{"result"})

	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lifelink_chat_rooms",
		Help: "Live relay rooms with at least one member",
	})

	// NameFallbacks counts sends where a display name fell back to the generic kind label.
	NameFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifelink_chat_name_fallbacks_total",
		Help: "Display names replaced by the generic participant label",
	}, []string{"kind"})
)

const (
	ReasonValidation = "validation"
	ReasonStorage    = "storage"

	ResultDelivered     = "delivered"
	ResultDropped       = "dropped"
	ResultPublishFailed = "publish_failed"
)
