package model

import "time"

type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

// Submission is a staged resident record awaiting review. At most one of
// HouseholdID and NewHousehold is set.
type Submission struct {
	ID int64 `json:"id"`
	ResidentFields
	HouseholdID   *int64           `json:"household_id"`
	NewHousehold  *HouseholdFields `json:"new_household,omitempty"`
	SubmittedBy   int64            `json:"submitted_by"`
	SubmitterName string           `json:"submitter_name,omitempty"`
	SubmittedAt   time.Time        `json:"submitted_at"`
	Status        SubmissionStatus `json:"status"`
	ReviewedBy    *int64           `json:"reviewed_by"`
	ReviewerName  string           `json:"reviewer_name,omitempty"`
	ReviewedAt    *time.Time       `json:"reviewed_at"`
}

func (s *Submission) IsPending() bool {
	return s.Status == StatusPending
}
