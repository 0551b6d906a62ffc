package domain

import "time"

type IssueType string

const (
	IssueTypePickup IssueType = "pickup_issue"
	IssueTypeReturn IssueType = "return_issue"
)

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

type IssueStatus string

const (
	IssueStatusPending  IssueStatus = "pending"
	IssueStatusApproved IssueStatus = "approved"
	IssueStatusRejected IssueStatus = "rejected"
)

type IssueDecision string

const (
	IssueDecisionApprove IssueDecision = "approve"
	IssueDecisionReject  IssueDecision = "reject"
)

type IssueReport struct {
	ID           string      `json:"id"`
	RentalID     string      `json:"rental_id"`
	Type         IssueType   `json:"type"`
	Severity     *Severity   `json:"severity,omitempty"`
	Description  string      `json:"description"`
	EvidenceKeys []string    `json:"evidence_keys"`
	SubmittedBy  string      `json:"submitted_by"`
	Against      string      `json:"against"`
	Status       IssueStatus `json:"status"`
	ResolvedBy   *string     `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time  `json:"resolved_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// IssueReportInput is what a participant submits when reporting a problem.
type IssueReportInput struct {
	Type         IssueType `json:"type"`
	Severity     *Severity `json:"severity,omitempty"`
	Description  string    `json:"description"`
	EvidenceKeys []string  `json:"evidence_keys"`
}
