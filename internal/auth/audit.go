package auth

import (
	"context"
	"log/slog"
	"time"
)

// Event is a single authentication event handed to the audit recorder.
// It carries the caller and outcome only; raw tokens and claim payloads
// must never appear here.
type Event struct {
	Type      string // "auth.success" or "auth.failure"
	SubjectID string // empty when the caller could not be identified
	Source    string // api_key, admin_token, introspection; empty on early rejects
	Reason    Reason // set on failures
	At        time.Time
}

// Recorder receives authentication events. The production sink lives
// outside this core; SlogRecorder is the default.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// SlogRecorder writes audit events to the process logger.
type SlogRecorder struct{}

func (SlogRecorder) Record(_ context.Context, ev Event) {
	if ev.Type == "auth.failure" {
		slog.Warn("authentication rejected",
			"event", ev.Type,
			"subjectId", ev.SubjectID,
			"source", ev.Source,
			"reason", string(ev.Reason),
			"at", ev.At.UTC().Format(time.RFC3339),
		)
		return
	}
	slog.Info("authentication succeeded",
		"event", ev.Type,
		"subjectId", ev.SubjectID,
		"source", ev.Source,
		"at", ev.At.UTC().Format(time.RFC3339),
	)
}
