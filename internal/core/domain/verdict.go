package domain

// ConfidenceLabel is the discrete groundedness verdict for an answer.
type ConfidenceLabel string

const (
	ConfidenceHigh         ConfidenceLabel = "HIGH"
	ConfidenceMedium       ConfidenceLabel = "MEDIUM"
	ConfidenceLow          ConfidenceLabel = "LOW"
	ConfidenceInsufficient ConfidenceLabel = "INSUFFICIENT"
)

// ValidationVerdict is computed once per answer and never persisted by the core.
type ValidationVerdict struct {
	ConfidenceLabel ConfidenceLabel `json:"confidence_label"`
	SupportScore    float64         `json:"support_score"`
	Warnings        []string        `json:"warnings"`
}
