package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	v1 "courier/contracts/realtime/v1"

	"courier/cmd/identity"
	"courier/cmd/identity/ids"
	"courier/cmd/internal/chat"
)

// Bridge connects the delivery core to live sessions. It implements
// chat.Events: new messages go straight to each participant's registered
// session, status and read events go through the conversation room.
type Bridge struct {
	log      *slog.Logger
	registry *Registry
	hub      *Hub
	metrics  *Metrics
}

// NewBridge constructs the events bridge.
func NewBridge(log *slog.Logger, registry *Registry, hub *Hub, metrics *Metrics) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Bridge{log: log, registry: registry, hub: hub, metrics: metrics}
}

// MessageReceived delivers the persisted message to every participant with a
// live session, sender included so multi-tab view state converges.
func (b *Bridge) MessageReceived(conv *chat.Conversation, msg *chat.Message, sender identity.User) {
	payload := v1.MessageReceivedPayload{
		ConversationID: conv.ID,
		Message:        toMessagePayload(msg, sender),
	}
	env, ok := marshalEnvelope(b.log, v1.TypeMessageReceived, payload, msg.SentAt)
	if !ok {
		return
	}

	for _, p := range conv.Participants {
		c := b.registry.Lookup(p)
		if c == nil {
			continue
		}
		if c.TrySend(env) {
			b.metrics.MessagesDelivered.Inc()
		} else {
			b.metrics.DroppedEnvelopes.Inc()
			b.log.Warn("bridge.message.drop", "user_id", p, "message_id", msg.ID)
		}
	}
}

// MessageStatusUpdated announces a status transition to the conversation room.
func (b *Bridge) MessageStatusUpdated(conversationID, messageID string, status chat.Status, at time.Time) {
	payload := v1.MessageStatusUpdatedPayload{
		MessageID: messageID,
		Status:    string(status),
		Timestamp: at,
	}
	env, ok := marshalEnvelope(b.log, v1.TypeMessageStatusUpdated, payload, at)
	if !ok {
		return
	}

	b.hub.Broadcast(conversationID, env)
	b.metrics.StatusUpdates.WithLabelValues(string(status)).Inc()
}

// MessageRead announces a read acknowledgement to the conversation room.
func (b *Bridge) MessageRead(conversationID, messageID, readBy string) {
	now := time.Now().UTC()
	payload := v1.MessageReadPayload{
		MessageID:      messageID,
		ReadBy:         readBy,
		ConversationID: conversationID,
	}
	env, ok := marshalEnvelope(b.log, v1.TypeMessageRead, payload, now)
	if !ok {
		return
	}

	b.hub.Broadcast(conversationID, env)
	b.metrics.StatusUpdates.WithLabelValues(string(chat.StatusRead)).Inc()
}

// Online reports whether the user currently has a live session.
func (b *Bridge) Online(userID string) bool {
	return b.registry.Online(userID)
}

func toMessagePayload(msg *chat.Message, sender identity.User) v1.MessagePayload {
	p := v1.MessagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     sender.Name,
		SenderAvatar:   sender.AvatarURL,
		Kind:           string(msg.Kind),
		Text:           msg.Text,
		Status:         string(msg.Status),
		SentAt:         msg.SentAt,
		DeliveredAt:    msg.DeliveredAt,
		ReadAt:         msg.ReadAt,
	}
	if msg.Image != nil {
		p.Image = &v1.ImagePayload{URL: msg.Image.URL, Filename: msg.Image.Filename, Size: msg.Image.Size}
	}
	return p
}

// marshalEnvelope builds an outbound envelope; marshal failures are logged
// and swallowed because payload types are our own.
func marshalEnvelope(log *slog.Logger, typ string, payload any, ts time.Time) (v1.Envelope, bool) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error("bridge.marshal.fail", "type", typ, "err", err)
		return v1.Envelope{}, false
	}
	return newEnvelope(typ, raw, ts), true
}

// newEnvelope stamps the wire wrapper. Envelope ids are ULIDs so they order
// in logs.
func newEnvelope(typ string, payload json.RawMessage, ts time.Time) v1.Envelope {
	id, err := ids.NewULID(ts)
	if err != nil {
		id = ""
	}
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		TS:      ts,
		Payload: payload,
	}
}
