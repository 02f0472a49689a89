// Package queue mirrors committed audit events onto a RabbitMQ queue and
// consumes them into an append-only audit log file.
package queue

import (
	"time"

	"github.com/iliyamo/member-portal/internal/model"
)

// AuditQueueName is the durable queue audit events are published to.
const AuditQueueName = "audit.recorded"

// AuditEvent is the message payload. It carries everything a downstream
// consumer needs without reading the primary database.
type AuditEvent struct {
	ID         int64   `json:"id"`
	UserID     *int64  `json:"user_id"`
	Action     string  `json:"action"`
	IPAddress  *string `json:"ip_address,omitempty"`
	UserAgent  *string `json:"user_agent,omitempty"`
	Details    *string `json:"details,omitempty"`
	RecordedAt string  `json:"recorded_at"`
}

// EventFromLog builds the payload for a stored audit row.
func EventFromLog(a *model.AuditLog) AuditEvent {
	return AuditEvent{
		ID:         a.ID,
		UserID:     a.UserID,
		Action:     a.Action,
		IPAddress:  a.IPAddress,
		UserAgent:  a.UserAgent,
		Details:    a.Details,
		RecordedAt: a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
