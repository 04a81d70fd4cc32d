// Package mailing provides the outbound message transport and the
// per-step drip templates the worker renders before sending.
package mailing

import (
	"context"
	"log"
	"time"

	"github.com/ignite/hyperdrip/internal/pkg/logger"
)

// DripMessage is one rendered drip message ready for transport.
type DripMessage struct {
	LeadID        string
	Email         string
	Name          string
	MessageNumber int
	MaxMessages   int
	Subject       string
	Body          string
}

// SendResult contains the result of a send attempt.
type SendResult struct {
	Success   bool
	MessageID string
	SentAt    time.Time
}

// Sender delivers a drip message through some transport. The worker
// treats it as an opaque effect: an error (or !Success) aborts the
// counter advance and the queue entry is retried after its lease
// expires.
type Sender interface {
	Send(ctx context.Context, msg *DripMessage) (*SendResult, error)
}

// LogSender is the default transport: it records the send as a log line.
// This is what runs in development and in environments where no real
// transport is configured.
type LogSender struct{}

// NewLogSender creates a log-line transport.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send logs the message and reports success.
func (s *LogSender) Send(ctx context.Context, msg *DripMessage) (*SendResult, error) {
	log.Printf("[LogSender] Sending message %d/%d to %s: %s",
		msg.MessageNumber, msg.MaxMessages, logger.RedactEmail(msg.Email), msg.Subject)
	return &SendResult{Success: true, SentAt: time.Now()}, nil
}
