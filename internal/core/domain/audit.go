package domain

import "time"

// AuditEvent is one answer interaction recorded by the audit trail.
type AuditEvent struct {
	Timestamp     time.Time       `json:"timestamp"`
	RequestID     string          `json:"request_id,omitempty"`
	EventType     string          `json:"event_type"`
	Question      string          `json:"question"`
	Strategy      string          `json:"strategy"`
	K             int             `json:"k"`
	EvidenceCount int             `json:"evidence_count"`
	Confidence    ConfidenceLabel `json:"confidence"`
	SupportScore  float64         `json:"support_score"`
	ElapsedMS     int64           `json:"elapsed_ms"`
	Warnings      []string        `json:"warnings,omitempty"`
}

const (
	AuditEventAnswer = "answer"
	AuditEventSearch = "search"
)
