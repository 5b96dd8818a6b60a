package linkage

import (
	"time"

	"github.com/synaptica-ai/rxlink/pkg/common/models"
	"github.com/synaptica-ai/rxlink/pkg/decision"
	"gorm.io/datatypes"
)

// ComparisonLog is the audit row for one verdict. Record contents and the
// feature vector are intentionally absent.
type ComparisonLog struct {
	ID            string            `gorm:"primaryKey;column:id"`
	RequestID     string            `gorm:"column:request_id;index"`
	Source        string            `gorm:"column:source"`
	Verdict       string            `gorm:"column:verdict"`
	Probability   float64           `gorm:"column:probability"`
	Confidence    float64           `gorm:"column:confidence"`
	Threshold     float64           `gorm:"column:threshold"`
	ModelVersion  string            `gorm:"column:model_version"`
	TablesVersion string            `gorm:"column:tables_version"`
	LatencyMs     float64           `gorm:"column:latency_ms"`
	Metadata      datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt     time.Time         `gorm:"column:created_at;index"`
}

func (ComparisonLog) TableName() string {
	return "prescription_comparisons"
}

func newComparisonLog(source string, result *models.ComparisonResult, metadata map[string]string) *ComparisonLog {
	var meta datatypes.JSONMap
	if len(metadata) > 0 {
		meta = make(datatypes.JSONMap, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
	}
	return &ComparisonLog{
		RequestID:     result.RequestID,
		Source:        source,
		Verdict:       result.Verdict,
		Probability:   result.Probability,
		Confidence:    result.Confidence,
		Threshold:     result.Threshold,
		ModelVersion:  result.ModelVersion,
		TablesVersion: result.TablesVersion,
		LatencyMs:     result.LatencyMs,
		Metadata:      meta,
		CreatedAt:     result.ComparedAt,
	}
}

// Result rebuilds the API view of a stored verdict.
func (l ComparisonLog) Result() models.ComparisonResult {
	return models.ComparisonResult{
		RequestID:     l.RequestID,
		Verdict:       l.Verdict,
		Probability:   l.Probability,
		Confidence:    l.Confidence,
		Threshold:     l.Threshold,
		Statement:     l.decision().Statement(),
		ModelVersion:  l.ModelVersion,
		TablesVersion: l.TablesVersion,
		LatencyMs:     l.LatencyMs,
		ComparedAt:    l.CreatedAt,
	}
}

func (l ComparisonLog) decision() decision.Decision {
	return decision.Decision{
		Verdict:     decision.Verdict(l.Verdict),
		Confidence:  l.Confidence,
		Probability: l.Probability,
		Threshold:   l.Threshold,
	}
}
