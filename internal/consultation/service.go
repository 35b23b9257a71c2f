package consultation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cardiovision/internal/agent"
	"cardiovision/internal/identity"
	"cardiovision/internal/observability/metrics"
	"cardiovision/internal/risk"
	"cardiovision/pkg/logging"
)

// AIClient produces narratives. Failures come back inside the Completion.
type AIClient interface {
	Complete(ctx context.Context, prompt, system string) agent.Completion
}

// Alerter is told about High tier assessments after they are stored.
type Alerter interface {
	SendHighRiskAlert(ctx context.Context, a Assessment) error
}

const (
	DefaultRecentLimit = 5
	DefaultChatLimit   = 50
	maxListLimit       = 100

	alertTimeout = 30 * time.Second
)

type Service interface {
	AssessHeart(ctx context.Context, owner identity.Identity, raw map[string]string) (*AssessmentResult, error)
	AssessStroke(ctx context.Context, owner identity.Identity, raw map[string]string) (*AssessmentResult, error)
	Assess(ctx context.Context, owner identity.Identity, kind risk.Kind, raw map[string]string) (*AssessmentResult, error)
	AnalyzeMedications(ctx context.Context, owner identity.Identity, medications string) (*MedicationAnalysis, error)
	Chat(ctx context.Context, owner identity.Identity, message string) (*ChatResult, error)

	Assessment(ctx context.Context, owner identity.Identity, id uuid.UUID) (*Assessment, error)
	RecentAssessments(ctx context.Context, owner identity.Identity, kind risk.Kind, limit int) ([]*Assessment, error)
	RecentMedicationAnalyses(ctx context.Context, owner identity.Identity, limit int) ([]*MedicationAnalysis, error)
	ChatHistory(ctx context.Context, owner identity.Identity, limit int) ([]*ChatExchange, error)
	ClearChat(ctx context.Context, owner identity.Identity) (int64, error)
}

// Deps is everything the service talks to. Alerts and Metrics may be nil.
type Deps struct {
	Repo    Repository
	AI      AIClient
	Alerts  Alerter
	Metrics *metrics.ConsultationMetrics
	Logger  *logging.Logger
	Now     func() time.Time
	NewID   func() uuid.UUID
}

type service struct {
	repo    Repository
	ai      AIClient
	alerts  Alerter
	metrics *metrics.ConsultationMetrics
	logger  *logging.Logger
	now     func() time.Time
	newID   func() uuid.UUID
}

func NewService(d Deps) Service {
	if d.Repo == nil || d.AI == nil {
		panic("consultation: repository and AI client are required")
	}
	s := &service{
		repo:    d.Repo,
		ai:      d.AI,
		alerts:  d.Alerts,
		metrics: d.Metrics,
		logger:  d.Logger,
		now:     d.Now,
		newID:   d.NewID,
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.New
	}
	return s
}

func (s *service) AssessHeart(ctx context.Context, owner identity.Identity, raw map[string]string) (*AssessmentResult, error) {
	return s.Assess(ctx, owner, risk.KindHeart, raw)
}

func (s *service) AssessStroke(ctx context.Context, owner identity.Identity, raw map[string]string) (*AssessmentResult, error) {
	return s.Assess(ctx, owner, risk.KindStroke, raw)
}

// Assess scores the answers, asks the AI for a narrative and stores one
// record. An AI failure still produces a record; only storage errors abort.
func (s *service) Assess(ctx context.Context, owner identity.Identity, kind risk.Kind, raw map[string]string) (*AssessmentResult, error) {
	q, ok := risk.ForKind(kind)
	if !ok {
		return nil, fmt.Errorf("consultation: unknown assessment kind %q", kind)
	}

	answers, ignored := risk.ParseAnswers(raw, q)
	if len(ignored) > 0 {
		s.logger.Warn("ignoring unknown assessment fields", "kind", kind, "fields", ignored, "owner_id", owner.UserID)
	}

	result := risk.Score(answers, q)
	s.metrics.ObserveAssessment(string(kind), string(result.Tier))

	purpose := purposeForKind(kind)
	prompt, err := BuildPrompt(purpose, PromptInput{Result: result, Answers: answers})
	if err != nil {
		return nil, err
	}
	completion := s.complete(ctx, purpose, prompt)

	a := &Assessment{
		ID:        s.newID(),
		OwnerID:   owner.UserID,
		Kind:      kind,
		Score:     result.Score,
		Tier:      result.Tier,
		Answers:   answers,
		Narrative: completion.Narrative(),
		AIStatus:  completion.Status,
		CreatedAt: s.now(),
	}
	if err := s.repo.SaveAssessment(ctx, a); err != nil {
		return nil, fmt.Errorf("save %s assessment: %w", kind, err)
	}

	s.logger.Info("assessment stored",
		"id", a.ID,
		"kind", kind,
		"score", a.Score,
		"tier", a.Tier,
		"ai_status", a.AIStatus,
		"owner_id", owner.UserID,
	)

	if a.Tier == risk.TierHigh {
		s.alert(ctx, *a)
	}

	res := resultFromAssessment(a)
	return &res, nil
}

func (s *service) AnalyzeMedications(ctx context.Context, owner identity.Identity, medications string) (*MedicationAnalysis, error) {
	prompt, err := BuildPrompt(PurposeMedication, PromptInput{Medications: medications})
	if err != nil {
		return nil, err
	}
	completion := s.complete(ctx, PurposeMedication, prompt)

	m := &MedicationAnalysis{
		ID:          s.newID(),
		OwnerID:     owner.UserID,
		Medications: strings.TrimSpace(medications),
		Narrative:   completion.Narrative(),
		AIStatus:    completion.Status,
		CreatedAt:   s.now(),
	}
	if err := s.repo.SaveMedicationAnalysis(ctx, m); err != nil {
		return nil, fmt.Errorf("save medication analysis: %w", err)
	}
	s.logger.Info("medication analysis stored", "id", m.ID, "ai_status", m.AIStatus, "owner_id", owner.UserID)
	return m, nil
}

// Chat skips scoring: the message goes straight to the AI with a persona
// naming the caller.
func (s *service) Chat(ctx context.Context, owner identity.Identity, message string) (*ChatResult, error) {
	prompt, err := BuildPrompt(PurposeChat, PromptInput{Message: message, DisplayName: owner.DisplayName})
	if err != nil {
		return nil, err
	}
	completion := s.complete(ctx, PurposeChat, prompt)

	c := &ChatExchange{
		ID:        s.newID(),
		OwnerID:   owner.UserID,
		Message:   prompt.Text,
		Response:  completion.Narrative(),
		AIStatus:  completion.Status,
		CreatedAt: s.now(),
	}
	if err := s.repo.SaveChat(ctx, c); err != nil {
		return nil, fmt.Errorf("save chat message: %w", err)
	}
	return &ChatResult{RecordID: c.ID, Narrative: c.Response, AIStatus: c.AIStatus}, nil
}

func (s *service) Assessment(ctx context.Context, owner identity.Identity, id uuid.UUID) (*Assessment, error) {
	return s.repo.GetAssessment(ctx, owner.UserID, id)
}

func (s *service) RecentAssessments(ctx context.Context, owner identity.Identity, kind risk.Kind, limit int) ([]*Assessment, error) {
	if _, ok := risk.ForKind(kind); !ok {
		return nil, invalid(fmt.Sprintf("unknown assessment kind %q", kind))
	}
	return s.repo.ListAssessments(ctx, owner.UserID, kind, clampLimit(limit, DefaultRecentLimit))
}

func (s *service) RecentMedicationAnalyses(ctx context.Context, owner identity.Identity, limit int) ([]*MedicationAnalysis, error) {
	return s.repo.ListMedicationAnalyses(ctx, owner.UserID, clampLimit(limit, DefaultRecentLimit))
}

func (s *service) ChatHistory(ctx context.Context, owner identity.Identity, limit int) ([]*ChatExchange, error) {
	return s.repo.ListChat(ctx, owner.UserID, clampLimit(limit, DefaultChatLimit))
}

func (s *service) ClearChat(ctx context.Context, owner identity.Identity) (int64, error) {
	n, err := s.repo.ClearChat(ctx, owner.UserID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("chat history cleared", "owner_id", owner.UserID, "deleted", n)
	return n, nil
}

func (s *service) complete(ctx context.Context, purpose Purpose, p Prompt) agent.Completion {
	start := time.Now()
	completion := s.ai.Complete(ctx, p.Text, p.System)
	s.metrics.ObserveAIRequest(string(purpose), string(completion.Status), time.Since(start).Seconds())
	if !completion.OK() {
		s.logger.Warn("AI narrative unavailable", "purpose", purpose, "status", completion.Status, "error", completion.Err)
	}
	return completion
}

// alert never fails the request; the record is already stored.
// Delivery outlives a client disconnect but is bounded by alertTimeout.
func (s *service) alert(ctx context.Context, a Assessment) {
	if s.alerts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()
	if err := s.alerts.SendHighRiskAlert(ctx, a); err != nil {
		s.metrics.ObserveAlert("failed")
		s.logger.Error("failed to send high-risk alert", "id", a.ID, "error", err)
		return
	}
	s.metrics.ObserveAlert("sent")
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
