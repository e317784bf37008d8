// Package audit appends per-stage audit records to resolved products.
package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// Recorder appends AuditStageRecords. The zero value uses time.Now.
type Recorder struct {
	now func() time.Time
}

// NewRecorder creates a recorder using the wall clock.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (r *Recorder) WithNow(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record appends one record for stage. Each stage may be recorded once and
// stages must be recorded in increasing order; earlier records are never
// touched.
func (r *Recorder) Record(p *model.ResolvedProduct, stage int, inputs, outputs map[string]any, confidence float64) (model.AuditStageRecord, error) {
	if p == nil {
		return model.AuditStageRecord{}, eris.New("audit: nil product")
	}
	if last := p.LastStage(); stage <= last {
		return model.AuditStageRecord{}, eris.Errorf("audit: stage %d already past (last recorded %d)", stage, last)
	}

	now := time.Now
	if r != nil && r.now != nil {
		now = r.now
	}

	rec := model.AuditStageRecord{
		ID:         uuid.New().String(),
		Stage:      stage,
		Name:       model.StageNames[stage],
		Inputs:     inputs,
		Outputs:    outputs,
		Confidence: model.Round3(model.Clamp(confidence)),
		Timestamp:  now().UTC(),
	}
	p.Trail = append(p.Trail, rec)
	return rec, nil
}
