// Package api contains types for the API requests and responses.
package api

import (
	"github.com/magicman/marv/internal/decision"
	"github.com/magicman/marv/internal/models"
)

// ValidateResponse is the body of a successful POST /validate.
type ValidateResponse struct {
	OK         bool                    `json:"ok"`
	Validation models.ValidationResult `json:"validation"`
}

// Assessment is the public view of a decision record.
type Assessment struct {
	Decision   decision.Decision `json:"decision"`
	Confidence float64           `json:"confidence_0to1"`
	Reasons    []string          `json:"reasons"`
	Label      string            `json:"label,omitempty"`
	Duration   string            `json:"job_duration,omitempty"`
}

// NewAssessment projects r for the widget.
func NewAssessment(r decision.Record) Assessment {
	return Assessment{
		Decision:   r.Decision,
		Confidence: r.Confidence,
		Reasons:    r.Reasons,
		Label:      r.Decision.Label(),
		Duration:   r.Decision.JobDuration(),
	}
}

// TriageResponse is the body of a successful POST /triage.
type TriageResponse struct {
	OK         bool       `json:"ok"`
	ResultText string     `json:"result_text"`
	Assessment Assessment `json:"assessment"`
	CaseID     string     `json:"case_id"`
}

// DiagResponse reports the provider configuration with the key masked.
type DiagResponse struct {
	OK          bool   `json:"ok"`
	Endpoint    string `json:"endpoint"`
	Deployment  string `json:"deployment"`
	APIVersion  string `json:"apiVersion"`
	Mode        string `json:"mode"`
	Transport   string `json:"imageTransport"`
	HasAPIKey   bool   `json:"hasApiKey"`
	APIKey      string `json:"apiKey"`
	HasAssistID bool   `json:"hasAssistantId"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
