package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/risk"
	"github.com/davidleathers/qaudit-backend/internal/domain/sampling"
)

func (s *Store) CreateSample(ctx context.Context, sample *sampling.Sample) error {
	return s.do(ctx, func(st *state) error {
		if _, ok := st.samples[sample.ID]; ok {
			return errors.ErrDuplicateRecord
		}
		st.samples[sample.ID] = *sample
		return nil
	})
}

func (s *Store) GetSample(ctx context.Context, id uuid.UUID) (*sampling.Sample, error) {
	var out *sampling.Sample
	err := s.do(ctx, func(st *state) error {
		sample, ok := st.samples[id]
		if !ok {
			return errors.ErrSampleNotFound
		}
		out = &sample
		return nil
	})
	return out, err
}

func (s *Store) CreateAssessment(ctx context.Context, a *risk.Assessment) error {
	return s.do(ctx, func(st *state) error {
		if _, ok := st.universes[a.AuditUniverseID]; !ok {
			return errors.ErrAuditUniverseNotFound
		}
		st.assessments = append(st.assessments, *a)
		return nil
	})
}

// ListAssessments returns an entity's assessments, newest first
func (s *Store) ListAssessments(ctx context.Context, auditUniverseID uuid.UUID) ([]*risk.Assessment, error) {
	var out []*risk.Assessment
	err := s.do(ctx, func(st *state) error {
		for i := len(st.assessments) - 1; i >= 0; i-- {
			if st.assessments[i].AuditUniverseID == auditUniverseID {
				a := st.assessments[i]
				out = append(out, &a)
			}
		}
		return nil
	})
	return out, err
}

// Record seals entry onto the end of the audit chain
func (s *Store) Record(ctx context.Context, entry *audit.Entry) error {
	return s.do(ctx, func(st *state) error {
		var prev *audit.Entry
		if n := len(st.auditLog); n > 0 {
			prev = &st.auditLog[n-1]
		}
		if err := entry.Seal(prev); err != nil {
			return err
		}
		st.auditLog = append(st.auditLog, *entry)
		return nil
	})
}

// AuditEntries returns the audit chain in sequence order
func (s *Store) AuditEntries(ctx context.Context) ([]*audit.Entry, error) {
	var out []*audit.Entry
	err := s.do(ctx, func(st *state) error {
		out = make([]*audit.Entry, len(st.auditLog))
		for i := range st.auditLog {
			e := st.auditLog[i]
			out[i] = &e
		}
		return nil
	})
	return out, err
}
