package linkage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/synaptica-ai/rxlink/pkg/common/models"
	"github.com/synaptica-ai/rxlink/pkg/decision"
	"github.com/synaptica-ai/rxlink/pkg/features"
	"github.com/synaptica-ai/rxlink/pkg/scoring"
	"github.com/synaptica-ai/rxlink/pkg/serving/predictor"
)

const (
	modelFixture = "../serving/predictor/testdata/rx_pair_logistic.json"
	shippedModel = "../../models/rx_pair_logistic.json"
)

type fakeRecorder struct {
	mu   sync.Mutex
	logs []*ComparisonLog
	err  error
}

func (f *fakeRecorder) SaveComparison(_ context.Context, log *ComparisonLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.logs = append(f.logs, log)
	return nil
}

type publishedEvent struct {
	eventType string
	key       string
	payload   interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (f *fakePublisher) PublishEvent(_ context.Context, eventType, _, key string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, publishedEvent{eventType: eventType, key: key, payload: payload})
	return nil
}

func fixedScorer(p float64) scoring.Scorer {
	return scoring.Func(func(context.Context, features.Vector) (float64, error) {
		return p, nil
	})
}

func quantity(n int) json.RawMessage {
	return json.RawMessage(strconv.Itoa(n))
}

func samplePayload() features.RecordPayload {
	return features.RecordPayload{
		Identifier:         "123-456-789 00",
		BirthDate:          "01.01.1990",
		GenericName:        "Ибупрофен",
		PrescribedText:     "Ибупрофен таблетки 200мг №30",
		DispensedText:      "Ибупрофен таб. 200мг",
		QuantityPrescribed: quantity(2),
		QuantityDispensed:  quantity(2),
	}
}

func sampleRequest(id string) models.ComparisonRequest {
	return models.ComparisonRequest{RequestID: id, RecordA: samplePayload(), RecordB: samplePayload()}
}

func TestCompareSame(t *testing.T) {
	rec, pub := &fakeRecorder{}, &fakePublisher{}
	svc := NewService(nil, fixedScorer(0.875), decision.NewPolicy(0.5), Options{
		Recorder:     rec,
		Publisher:    pub,
		ModelVersion: "stub@1",
	})

	req := sampleRequest("req-1")
	req.Metadata = map[string]string{"pharmacy": "42"}
	result, err := svc.Compare(context.Background(), req)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if result.Verdict != "SAME" || result.Confidence != 0.875 || result.Probability != 0.875 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Statement != "same prescription (confidence 87.5%)" {
		t.Fatalf("unexpected statement %q", result.Statement)
	}
	if result.RequestID != "req-1" || result.ModelVersion != "stub@1" || result.TablesVersion != "2024.1" {
		t.Fatalf("unexpected identifiers %+v", result)
	}

	if len(rec.logs) != 1 {
		t.Fatalf("expected one audit row, got %d", len(rec.logs))
	}
	row := rec.logs[0]
	if row.RequestID != "req-1" || row.Source != defaultSource || row.Metadata["pharmacy"] != "42" {
		t.Fatalf("unexpected audit row %+v", row)
	}
	if len(pub.events) != 1 || pub.events[0].eventType != models.EventCompareVerdict || pub.events[0].key != "req-1" {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestCompareAssignsRequestID(t *testing.T) {
	svc := NewService(nil, fixedScorer(0.1), decision.Policy{}, Options{})
	result, err := svc.Compare(context.Background(), sampleRequest(""))
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if result.RequestID == "" {
		t.Fatal("expected generated request id")
	}
	if result.Verdict != "DIFFERENT" || result.Confidence != 0.9 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCompareValidationErrorSkipsScoring(t *testing.T) {
	calls := 0
	scorer := scoring.Func(func(context.Context, features.Vector) (float64, error) {
		calls++
		return 0.9, nil
	})
	rec := &fakeRecorder{}
	svc := NewService(nil, scorer, decision.Policy{}, Options{Recorder: rec})

	req := sampleRequest("req-2")
	req.RecordB.QuantityDispensed = nil
	_, err := svc.Compare(context.Background(), req)
	if !features.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var ve *features.ValidationError
	if !errors.As(err, &ve) || ve.Record != "b" || ve.Field != features.FieldQuantityDispensed {
		t.Fatalf("unexpected validation target: %v", err)
	}
	if calls != 0 || len(rec.logs) != 0 {
		t.Fatalf("invalid input must not be scored or recorded (calls=%d, logs=%d)", calls, len(rec.logs))
	}
}

func TestCompareScoringErrors(t *testing.T) {
	cases := []struct {
		name   string
		scorer scoring.Scorer
		kind   scoring.Kind
	}{
		{"unavailable", scoring.Func(func(context.Context, features.Vector) (float64, error) {
			return 0, errors.New("connection refused")
		}), scoring.KindUnavailable},
		{"out of range", fixedScorer(1.5), scoring.KindInvalid},
		{"missing", nil, scoring.KindUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			svc := NewService(nil, tc.scorer, decision.Policy{}, Options{Recorder: rec})
			result, err := svc.Compare(context.Background(), sampleRequest("req-3"))
			if result != nil || scoring.KindOf(err) != tc.kind {
				t.Fatalf("expected %s error, got %v / %+v", tc.kind, err, result)
			}
			if len(rec.logs) != 0 {
				t.Fatal("failed comparisons must not be recorded")
			}
		})
	}
}

func TestCompareSideEffectsAreBestEffort(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewService(nil, fixedScorer(0.7), decision.Policy{}, Options{Recorder: rec, Publisher: pub})

	result, err := svc.Compare(context.Background(), sampleRequest("req-4"))
	if err != nil {
		t.Fatalf("side effect failures must not fail the comparison: %v", err)
	}
	if result.Verdict != "SAME" {
		t.Fatalf("unexpected verdict %s", result.Verdict)
	}
}

func TestCompareWithLocalModel(t *testing.T) {
	artifacts := []struct {
		path    string
		version string
	}{
		{modelFixture, "rx-duplicate@test-1"},
		{shippedModel, "rx-duplicate@2024.2"},
	}
	for _, artifact := range artifacts {
		t.Run(artifact.version, func(t *testing.T) {
			model, err := predictor.Load(artifact.path)
			if err != nil {
				t.Fatalf("load model: %v", err)
			}
			svc := NewService(nil, model, decision.NewPolicy(0.5), Options{})

			same, err := svc.Compare(context.Background(), sampleRequest("identical"))
			if err != nil {
				t.Fatalf("compare: %v", err)
			}
			if same.Verdict != "SAME" || same.ModelVersion != artifact.version {
				t.Fatalf("identical records: unexpected result %+v", same)
			}

			// Same patient and drug, different product and a quantity gap of two.
			b := samplePayload()
			b.Identifier = "12345678900"
			b.BirthDate = "1 янв 1990 г."
			b.GenericName = "ибупрафен"
			b.PrescribedText = "гель 5% туба 50г"
			b.DispensedText = "гель туба"
			b.QuantityPrescribed = quantity(4)
			req := models.ComparisonRequest{RequestID: "scenario-4", RecordA: samplePayload(), RecordB: b}

			different, err := svc.Compare(context.Background(), req)
			if err != nil {
				t.Fatalf("compare: %v", err)
			}
			if different.Verdict != "DIFFERENT" || different.Probability >= 0.5 {
				t.Fatalf("expected DIFFERENT below 0.5, got %+v", different)
			}
			if different.Confidence != 1-different.Probability {
				t.Fatalf("confidence should be 1-p, got %v for p=%v", different.Confidence, different.Probability)
			}
		})
	}
}

func TestCompareBatch(t *testing.T) {
	svc := NewService(nil, fixedScorer(0.8), decision.Policy{}, Options{Workers: 2})

	invalid := sampleRequest("bad")
	invalid.RecordA.QuantityPrescribed = json.RawMessage(`"two"`)
	reqs := []models.ComparisonRequest{sampleRequest("a"), invalid, sampleRequest("c")}

	resp, err := svc.CompareBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(resp.Results) != 3 || resp.Failed != 1 {
		t.Fatalf("unexpected batch response %+v", resp)
	}
	for i, item := range resp.Results {
		if item.Index != i {
			t.Fatalf("item %d has index %d", i, item.Index)
		}
	}
	if resp.Results[0].Result.RequestID != "a" || resp.Results[2].Result.RequestID != "c" {
		t.Fatalf("results out of order: %+v", resp.Results)
	}
	if resp.Results[1].Error == nil || resp.Results[1].Error.Kind != models.KindInvalidInput {
		t.Fatalf("expected invalid_input for item 1, got %+v", resp.Results[1])
	}
}

func TestCompareBatchTooLarge(t *testing.T) {
	svc := NewService(nil, fixedScorer(0.8), decision.Policy{}, Options{BatchMax: 1})
	_, err := svc.CompareBatch(context.Background(), []models.ComparisonRequest{sampleRequest("a"), sampleRequest("b")})
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
}
