// Package linkage runs prescription pair comparisons end to end: parsing,
// feature extraction, scoring, the verdict and its audit trail.
package linkage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/rxlink/pkg/common/logger"
	"github.com/synaptica-ai/rxlink/pkg/common/models"
	"github.com/synaptica-ai/rxlink/pkg/decision"
	"github.com/synaptica-ai/rxlink/pkg/features"
	"github.com/synaptica-ai/rxlink/pkg/observability/metrics"
	"github.com/synaptica-ai/rxlink/pkg/scoring"
	"golang.org/x/sync/errgroup"
)

const defaultSource = "api"

var ErrBatchTooLarge = errors.New("batch exceeds the maximum size")

type Recorder interface {
	SaveComparison(ctx context.Context, log *ComparisonLog) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, eventType, source, key string, payload interface{}) error
}

type Options struct {
	Recorder  Recorder
	Publisher Publisher
	// ModelVersion is reported with every verdict; scorers exposing
	// ModelVersion() fill it automatically.
	ModelVersion string
	Workers      int
	BatchMax     int
}

type Service struct {
	extractor    *features.Extractor
	scorer       scoring.Scorer
	policy       decision.Policy
	recorder     Recorder
	publisher    Publisher
	modelVersion string
	workers      int
	batchMax     int
	now          func() time.Time
}

func NewService(extractor *features.Extractor, scorer scoring.Scorer, policy decision.Policy, opts Options) *Service {
	if extractor == nil {
		extractor = features.NewExtractor(nil)
	}
	if opts.ModelVersion == "" {
		if v, ok := scorer.(interface{ ModelVersion() string }); ok {
			opts.ModelVersion = v.ModelVersion()
		}
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.BatchMax <= 0 {
		opts.BatchMax = 500
	}
	return &Service{
		extractor:    extractor,
		scorer:       scorer,
		policy:       policy,
		recorder:     opts.Recorder,
		publisher:    opts.Publisher,
		modelVersion: opts.ModelVersion,
		workers:      opts.Workers,
		batchMax:     opts.BatchMax,
		now:          time.Now,
	}
}

// Compare decides whether the two records describe the same prescription.
// Validation and scoring failures come back as typed errors, never as a
// DIFFERENT verdict.
func (s *Service) Compare(ctx context.Context, req models.ComparisonRequest) (*models.ComparisonResult, error) {
	start := s.now()
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	source := req.Source
	if source == "" {
		source = defaultSource
	}
	log := logger.Log.WithFields(map[string]interface{}{
		"request_id": requestID,
		"source":     source,
	})

	a, b, err := features.ParsePair(req.RecordA, req.RecordB)
	if err != nil {
		metrics.ObserveValidationFailure()
		log.WithError(err).Info("comparison rejected")
		return nil, err
	}
	vector, err := s.extractor.Extract(a, b)
	if err != nil {
		metrics.ObserveValidationFailure()
		log.WithError(err).Info("comparison rejected")
		return nil, err
	}

	probability, err := scoring.Checked(ctx, s.scorer, vector)
	if err != nil {
		metrics.ObserveScoringFailure(scoring.KindOf(err) == scoring.KindInvalid)
		log.WithError(err).Error("scoring failed")
		return nil, err
	}

	d := s.policy.Decide(probability)
	latency := s.now().Sub(start)
	result := &models.ComparisonResult{
		RequestID:     requestID,
		Verdict:       string(d.Verdict),
		Probability:   d.Probability,
		Confidence:    d.Confidence,
		Threshold:     d.Threshold,
		Statement:     d.Statement(),
		ModelVersion:  s.modelVersion,
		TablesVersion: s.extractor.TablesVersion(),
		LatencyMs:     float64(latency.Microseconds()) / 1000,
		ComparedAt:    start.UTC(),
	}
	metrics.ObserveComparison(d.Verdict == decision.Same, latency)

	s.record(ctx, source, result, req.Metadata)
	s.publish(ctx, source, result)

	log.WithFields(map[string]interface{}{
		"verdict":     result.Verdict,
		"probability": result.Probability,
		"latency_ms":  result.LatencyMs,
	}).Info("comparison completed")
	return result, nil
}

// CompareBatch compares every request independently on a bounded worker
// pool. Items keep their input order; a failed item does not stop the rest.
func (s *Service) CompareBatch(ctx context.Context, reqs []models.ComparisonRequest) (*models.BatchComparisonResponse, error) {
	if len(reqs) > s.batchMax {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(reqs), s.batchMax)
	}

	items := make([]models.BatchComparisonItem, len(reqs))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range reqs {
		i := i
		g.Go(func() error {
			items[i].Index = i
			if err := ctx.Err(); err != nil {
				_, body := Classify(err)
				items[i].Error = &body
				return nil
			}
			result, err := s.Compare(ctx, reqs[i])
			if err != nil {
				_, body := Classify(err)
				items[i].Error = &body
				return nil
			}
			items[i].Result = result
			return nil
		})
	}
	_ = g.Wait()

	resp := &models.BatchComparisonResponse{Results: items}
	for _, item := range items {
		if item.Error != nil {
			resp.Failed++
		}
	}
	return resp, nil
}

func (s *Service) record(ctx context.Context, source string, result *models.ComparisonResult, metadata map[string]string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.SaveComparison(ctx, newComparisonLog(source, result, metadata)); err != nil {
		metrics.ObserveAuditFailure()
		logger.Log.WithError(err).WithField("request_id", result.RequestID).Warn("failed to record comparison")
	}
}

func (s *Service) publish(ctx context.Context, source string, result *models.ComparisonResult) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, models.EventCompareVerdict, source, result.RequestID, result); err != nil {
		metrics.ObservePublishFailure()
		logger.Log.WithError(err).WithField("request_id", result.RequestID).Warn("failed to publish verdict")
	}
}
