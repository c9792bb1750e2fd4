// Package notify publishes per-stage pipeline results to a NATS subject so
// downstream tooling can observe corpus runs. Publishing is best-effort: the
// orchestrator logs and ignores notification failures.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/corpus-prep/internal/pipeline"
)

// ErrSubjectEmpty indicates no stage subject was configured.
var ErrSubjectEmpty = errors.New("stage subject cannot be empty")

// StageCompletedEvent is the payload published after every stage result.
type StageCompletedEvent struct {
	Header    events.EventHeader `json:"header"`
	StageID   int                `json:"stage_id"`
	StageName string             `json:"stage_name"`
	Status    string             `json:"status"`
	Error     string             `json:"error,omitempty"`
}

// Publisher sends stage results to one NATS subject. All events of one
// pipeline run share a workflow id.
type Publisher struct {
	conn    *nats.Conn
	subject string
	runID   string
}

// New creates a Publisher bound to the given subject. A fresh workflow id is
// generated for the run.
func New(conn *nats.Conn, subject string) (*Publisher, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	return &Publisher{
		conn:    conn,
		subject: subject,
		runID:   uuid.NewString(),
	}, nil
}

// StageCompleted publishes one stage result. It implements pipeline.Notifier.
func (p *Publisher) StageCompleted(_ context.Context, result pipeline.StageResult) error {
	event := StageCompletedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now().UTC(),
			WorkflowID: p.runID,
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		StageID:   result.ID,
		StageName: result.Name,
		Status:    string(result.Status),
		Error:     result.Err,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stage event: %w", err)
	}

	publishErr := p.conn.Publish(p.subject, data)
	if publishErr != nil {
		return fmt.Errorf("failed to publish stage event to %s: %w", p.subject, publishErr)
	}

	return nil
}
