package consultation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cardiovision/internal/risk"
)

// Repository persists consultation records. Every Save is a single insert.
type Repository interface {
	SaveAssessment(ctx context.Context, a *Assessment) error
	GetAssessment(ctx context.Context, ownerID string, id uuid.UUID) (*Assessment, error)
	ListAssessments(ctx context.Context, ownerID string, kind risk.Kind, limit int) ([]*Assessment, error)

	SaveMedicationAnalysis(ctx context.Context, m *MedicationAnalysis) error
	ListMedicationAnalyses(ctx context.Context, ownerID string, limit int) ([]*MedicationAnalysis, error)

	SaveChat(ctx context.Context, c *ChatExchange) error
	ListChat(ctx context.Context, ownerID string, limit int) ([]*ChatExchange, error)
	ClearChat(ctx context.Context, ownerID string) (int64, error)
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) SaveAssessment(ctx context.Context, a *Assessment) error {
	answersJSON, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO assessments (id, owner_id, kind, score, tier, answers, narrative, ai_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.OwnerID, string(a.Kind), a.Score, string(a.Tier), answersJSON, a.Narrative, string(a.AIStatus), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

const assessmentColumns = `id, owner_id, kind, score, tier, answers, narrative, ai_status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*Assessment, error) {
	var a Assessment
	var answersJSON []byte
	if err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.Kind,
		&a.Score,
		&a.Tier,
		&answersJSON,
		&a.Narrative,
		&a.AIStatus,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(answersJSON) > 0 {
		if err := json.Unmarshal(answersJSON, &a.Answers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
		}
	}
	return &a, nil
}

func (r *postgresRepo) GetAssessment(ctx context.Context, ownerID string, id uuid.UUID) (*Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1 AND owner_id = $2`

	a, err := scanAssessment(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select assessment: %w", err)
	}
	return a, nil
}

func (r *postgresRepo) ListAssessments(ctx context.Context, ownerID string, kind risk.Kind, limit int) ([]*Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments
		WHERE owner_id = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, ownerID, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []*Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *postgresRepo) SaveMedicationAnalysis(ctx context.Context, m *MedicationAnalysis) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO medication_analyses (id, owner_id, medications, narrative, ai_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.OwnerID, m.Medications, m.Narrative, string(m.AIStatus), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert medication analysis: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListMedicationAnalyses(ctx context.Context, ownerID string, limit int) ([]*MedicationAnalysis, error) {
	query := `SELECT id, owner_id, medications, narrative, ai_status, created_at
		FROM medication_analyses
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list medication analyses: %w", err)
	}
	defer rows.Close()

	var out []*MedicationAnalysis
	for rows.Next() {
		var m MedicationAnalysis
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Medications, &m.Narrative, &m.AIStatus, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan medication analysis: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *postgresRepo) SaveChat(ctx context.Context, c *ChatExchange) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO chat_messages (id, owner_id, message, response, ai_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.OwnerID, c.Message, c.Response, string(c.AIStatus), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListChat(ctx context.Context, ownerID string, limit int) ([]*ChatExchange, error) {
	// Newest limit rows, returned oldest first.
	query := `SELECT id, owner_id, message, response, ai_status, created_at
		FROM (
			SELECT id, owner_id, message, response, ai_status, created_at
			FROM chat_messages
			WHERE owner_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var out []*ChatExchange
	for rows.Next() {
		var c ChatExchange
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Message, &c.Response, &c.AIStatus, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *postgresRepo) ClearChat(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("clear chat messages: %w", err)
	}
	return res.RowsAffected()
}
