package monitor

import (
	"fmt"
	"log"
	"strings"
	"time"

	"trading-engine/internal/events"
)

// AlertSink interface for pluggable alert delivery (pager, chat webhook, ...).
type AlertSink interface {
	Send(message string) error
}

// Sink is the terminal consumer for log and risk-alert events. It prints each
// record and mirrors it to the broadcaster so remote observers can follow.
type Sink struct {
	Printf      func(format string, args ...any)
	Broadcaster *events.Broadcaster
	// Escalate receives alerts with CRITICAL severity.
	Escalate AlertSink
}

// NewSink creates a sink writing through the standard logger.
func NewSink(b *events.Broadcaster) *Sink {
	return &Sink{Printf: log.Printf, Broadcaster: b}
}

// Log prints a log record as "[LOG][LEVEL] source: msg".
func (s *Sink) Log(d events.LogData) {
	level := strings.ToUpper(d.Level)
	if level == "" {
		level = events.LevelInfo
	}
	s.printf("[LOG][%s] %s", level, withSource(d.Source, d.Msg))
	if s.Broadcaster != nil {
		s.Broadcaster.Broadcast(events.NewLogEvent(d))
	}
}

// Alert prints a risk alert and escalates critical ones.
func (s *Sink) Alert(d events.RiskAlertData) {
	sev := strings.ToUpper(d.Severity)
	if sev == "" {
		sev = events.SeverityWarn
	}
	msg := withSource(d.Source, d.Msg)
	if d.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, d.Code)
	}
	s.printf("[RISK][%s] %s", sev, msg)

	if s.Broadcaster != nil {
		s.Broadcaster.Broadcast(events.NewRiskAlertEvent(d))
	}
	if s.Escalate != nil && sev == events.SeverityCritical {
		if err := s.Escalate.Send(formatAlert(d.Time, msg)); err != nil {
			s.printf("[RISK] alert escalation failed: %v", err)
		}
	}
}

func (s *Sink) printf(format string, args ...any) {
	if s.Printf == nil {
		log.Printf(format, args...)
		return
	}
	s.Printf(format, args...)
}

func withSource(source, msg string) string {
	if source == "" {
		return msg
	}
	return source + ": " + msg
}

func formatAlert(ts time.Time, msg string) string {
	if ts.IsZero() {
		ts = time.Now()
	}
	return "[" + ts.Format(time.RFC3339) + "] " + msg
}
