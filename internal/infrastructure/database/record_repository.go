package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/risk"
	"github.com/davidleathers/qaudit-backend/internal/domain/sampling"
)

// SampleRepository stores immutable samples
type SampleRepository struct {
	db *Pool
}

func NewSampleRepository(db *Pool) *SampleRepository {
	return &SampleRepository{db: db}
}

func (r *SampleRepository) CreateSample(ctx context.Context, s *sampling.Sample) error {
	criteria, err := encodeJSONText(s.Criteria)
	if err != nil {
		return fmt.Errorf("encode sample criteria: %w", err)
	}
	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("encode sample items: %w", err)
	}
	_, err = r.db.conn(ctx).Exec(ctx, `
		INSERT INTO samples (id, test_id, method, population_size, sample_size, confidence_level,
			precision_rate, selection_hash, criteria, items, selected_at, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.ID, s.TestID, string(s.Method), s.PopulationSize, s.SampleSize, s.ConfidenceLevel,
		s.PrecisionRate, s.SelectionHash, criteria, json.RawMessage(items),
		s.SelectedAt, s.Notes, s.CreatedBy, s.CreatedAt)
	return mapError(err, nil, "insert sample")
}

func (r *SampleRepository) GetSample(ctx context.Context, id uuid.UUID) (*sampling.Sample, error) {
	var s sampling.Sample
	var method string
	var criteria, items []byte
	err := r.db.conn(ctx).QueryRow(ctx, `
		SELECT id, test_id, method, population_size, sample_size, confidence_level, precision_rate,
			selection_hash, criteria, items, selected_at, notes, created_by, created_at
		FROM samples WHERE id = $1`, id).
		Scan(&s.ID, &s.TestID, &method, &s.PopulationSize, &s.SampleSize, &s.ConfidenceLevel,
			&s.PrecisionRate, &s.SelectionHash, &criteria, &items, &s.SelectedAt, &s.Notes,
			&s.CreatedBy, &s.CreatedAt)
	if err != nil {
		return nil, mapError(err, errors.ErrSampleNotFound, "get sample")
	}
	s.Method = sampling.Method(method)
	s.SelectedAt = s.SelectedAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()

	if err := decodeJSONNumbers(criteria, &s.Criteria); err != nil {
		return nil, fmt.Errorf("decode sample criteria: %w", err)
	}
	if err := json.Unmarshal(items, &s.Items); err != nil {
		return nil, fmt.Errorf("decode sample items: %w", err)
	}
	return &s, nil
}

// RiskRepository stores risk assessments
type RiskRepository struct {
	*PlanRepository
}

func NewRiskRepository(db *Pool) *RiskRepository {
	return &RiskRepository{PlanRepository: NewPlanRepository(db)}
}

func (r *RiskRepository) CreateAssessment(ctx context.Context, a *risk.Assessment) error {
	_, err := r.db.conn(ctx).Exec(ctx, `
		INSERT INTO risk_assessments (id, audit_universe_id, likelihood, impact, weight, score,
			residual_score, evidence, assessed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.AuditUniverseID, a.Likelihood, a.Impact, a.Weight, a.Score,
		a.ResidualScore, a.Evidence, a.AssessedBy, a.CreatedAt)
	return mapError(err, nil, "insert risk assessment")
}

func (r *RiskRepository) ListAssessments(ctx context.Context, auditUniverseID uuid.UUID) ([]*risk.Assessment, error) {
	rows, err := r.db.conn(ctx).Query(ctx, `
		SELECT id, audit_universe_id, likelihood, impact, weight, score, residual_score,
			evidence, assessed_by, created_at
		FROM risk_assessments
		WHERE audit_universe_id = $1
		ORDER BY created_at DESC, id`, auditUniverseID)
	if err != nil {
		return nil, mapError(err, nil, "list risk assessments")
	}
	defer rows.Close()

	var out []*risk.Assessment
	for rows.Next() {
		var a risk.Assessment
		if err := rows.Scan(&a.ID, &a.AuditUniverseID, &a.Likelihood, &a.Impact, &a.Weight, &a.Score,
			&a.ResidualScore, &a.Evidence, &a.AssessedBy, &a.CreatedAt); err != nil {
			return nil, mapError(err, nil, "scan risk assessment")
		}
		out = append(out, &a)
	}
	return out, mapError(rows.Err(), nil, "list risk assessments")
}

// encodeJSONText renders hashed maps for TEXT columns. Paired with
// decodeJSONNumbers it reproduces the bytes the hash was computed over.
func encodeJSONText(v map[string]any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeJSONNumbers keeps numbers as json.Number so re-encoding reproduces
// the stored digits
func decodeJSONNumbers(data []byte, dst *map[string]any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dst)
}
