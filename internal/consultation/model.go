package consultation

import (
	"time"

	"github.com/google/uuid"

	"cardiovision/internal/agent"
	"cardiovision/internal/risk"
)

// Assessment is a scored heart or stroke questionnaire with its narrative.
// Rows are inserted once and never updated.
type Assessment struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	OwnerID   string       `json:"owner_id" db:"owner_id"`
	Kind      risk.Kind    `json:"kind" db:"kind"`
	Score     int          `json:"score" db:"score"`
	Tier      risk.Tier    `json:"tier" db:"tier"`
	Answers   risk.Answers `json:"answers" db:"answers"`
	Narrative string       `json:"narrative" db:"narrative"`
	AIStatus  agent.Status `json:"ai_status" db:"ai_status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// MedicationAnalysis is an AI review of a free-text medication list.
type MedicationAnalysis struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	OwnerID     string       `json:"owner_id" db:"owner_id"`
	Medications string       `json:"medications" db:"medications"`
	Narrative   string       `json:"narrative" db:"narrative"`
	AIStatus    agent.Status `json:"ai_status" db:"ai_status"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// ChatExchange is one user message and the assistant's reply.
type ChatExchange struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	OwnerID   string       `json:"owner_id" db:"owner_id"`
	Message   string       `json:"message" db:"message"`
	Response  string       `json:"response" db:"response"`
	AIStatus  agent.Status `json:"ai_status" db:"ai_status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// AssessmentResult is what the assessment endpoints return.
type AssessmentResult struct {
	RecordID  uuid.UUID    `json:"record_id"`
	Kind      risk.Kind    `json:"kind"`
	Score     int          `json:"score"`
	Tier      risk.Tier    `json:"tier"`
	Narrative string       `json:"narrative"`
	AIStatus  agent.Status `json:"ai_status"`
	Answers   risk.Answers `json:"answers"`
	CreatedAt time.Time    `json:"created_at"`
}

func resultFromAssessment(a *Assessment) AssessmentResult {
	return AssessmentResult{
		RecordID:  a.ID,
		Kind:      a.Kind,
		Score:     a.Score,
		Tier:      a.Tier,
		Narrative: a.Narrative,
		AIStatus:  a.AIStatus,
		Answers:   a.Answers,
		CreatedAt: a.CreatedAt,
	}
}

// ChatResult is what the chat endpoint returns.
type ChatResult struct {
	RecordID  uuid.UUID    `json:"record_id"`
	Narrative string       `json:"response"`
	AIStatus  agent.Status `json:"ai_status"`
}
