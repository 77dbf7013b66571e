package dispatcher

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaywire/chat/internal/apperr"
	"github.com/relaywire/chat/internal/session"
	"github.com/relaywire/chat/internal/wire"
)

// ackOK writes a successful message_ack directly to sess, ahead of any
// bus-originated echo (§5 ordering guarantee).
func (d *Dispatcher) ackOK(sess *session.Session, id uuid.UUID, at time.Time) {
	payload, err := wire.Encode(&wire.ServerEvent{
		Type: wire.TypeMessageAck,
		MessageAck: &wire.MessageAck{
			ID:        id,
			Status:    "ok",
			Timestamp: &at,
		},
	})
	if err != nil {
		d.log.Error("dispatcher: encode ack failed", zap.Error(err))
		return
	}
	sess.Send(payload)
}

// ackError writes a failed message_ack carrying a machine-readable
// code and logs the operation id per the §7 propagation policy.
func (d *Dispatcher) ackError(sess *session.Session, id uuid.UUID, code apperr.Code, msg string) {
	d.log.Info("dispatcher: operation failed", zap.String("id", id.String()), zap.String("code", string(code)), zap.String("reason", msg))

	payload, err := wire.Encode(&wire.ServerEvent{
		Type: wire.TypeMessageAck,
		MessageAck: &wire.MessageAck{
			ID:     id,
			Status: "error",
			Error:  string(code),
		},
	})
	if err != nil {
		d.log.Error("dispatcher: encode error ack failed", zap.Error(err))
		return
	}
	sess.Send(payload)
}
