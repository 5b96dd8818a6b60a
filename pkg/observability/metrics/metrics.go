package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

var (
	comparisonsTotal    atomic.Int64
	verdictSame         atomic.Int64
	verdictDifferent    atomic.Int64
	validationFailures  atomic.Int64
	scoringUnavailable  atomic.Int64
	scoringInvalid      atomic.Int64
	comparisonLatencyUs atomic.Int64
	auditFailures       atomic.Int64
	publishFailures     atomic.Int64
	duplicateDeliveries atomic.Int64
	deadLettered        atomic.Int64
)

func ObserveComparison(sameVerdict bool, latency time.Duration) {
	comparisonsTotal.Add(1)
	if sameVerdict {
		verdictSame.Add(1)
	} else {
		verdictDifferent.Add(1)
	}
	comparisonLatencyUs.Add(latency.Microseconds())
}

func ObserveValidationFailure() { validationFailures.Add(1) }

// ObserveScoringFailure counts a scorer that could not answer separately
// from one that answered out of range.
func ObserveScoringFailure(invalid bool) {
	if invalid {
		scoringInvalid.Add(1)
		return
	}
	scoringUnavailable.Add(1)
}

func ObserveAuditFailure()      { auditFailures.Add(1) }
func ObservePublishFailure()    { publishFailures.Add(1) }
func ObserveDuplicateDelivery() { duplicateDeliveries.Add(1) }
func ObserveDeadLetter()        { deadLettered.Add(1) }

type Snapshot struct {
	Comparisons         int64
	Same                int64
	Different           int64
	ValidationFailures  int64
	ScoringUnavailable  int64
	ScoringInvalid      int64
	AuditFailures       int64
	PublishFailures     int64
	DuplicateDeliveries int64
	DeadLettered        int64
	LatencySeconds      float64
}

func Read() Snapshot {
	return Snapshot{
		Comparisons:         comparisonsTotal.Load(),
		Same:                verdictSame.Load(),
		Different:           verdictDifferent.Load(),
		ValidationFailures:  validationFailures.Load(),
		ScoringUnavailable:  scoringUnavailable.Load(),
		ScoringInvalid:      scoringInvalid.Load(),
		AuditFailures:       auditFailures.Load(),
		PublishFailures:     publishFailures.Load(),
		DuplicateDeliveries: duplicateDeliveries.Load(),
		DeadLettered:        deadLettered.Load(),
		LatencySeconds:      float64(comparisonLatencyUs.Load()) / 1e6,
	}
}

func WritePrometheus(w http.ResponseWriter) {
	s := Read()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP rxlink_comparisons_total Prescription pairs compared, by verdict.\n")
	fmt.Fprintf(w, "# TYPE rxlink_comparisons_total counter\n")
	fmt.Fprintf(w, "rxlink_comparisons_total{verdict=\"SAME\"} %d\n", s.Same)
	fmt.Fprintf(w, "rxlink_comparisons_total{verdict=\"DIFFERENT\"} %d\n", s.Different)

	fmt.Fprintf(w, "# HELP rxlink_comparison_latency_seconds_sum Cumulative time spent on successful comparisons.\n")
	fmt.Fprintf(w, "# TYPE rxlink_comparison_latency_seconds_sum counter\n")
	fmt.Fprintf(w, "rxlink_comparison_latency_seconds_sum %g\n", s.LatencySeconds)
	fmt.Fprintf(w, "rxlink_comparison_latency_seconds_count %d\n", s.Comparisons)

	fmt.Fprintf(w, "# HELP rxlink_comparison_failures_total Comparisons that produced no verdict, by kind.\n")
	fmt.Fprintf(w, "# TYPE rxlink_comparison_failures_total counter\n")
	fmt.Fprintf(w, "rxlink_comparison_failures_total{kind=\"invalid_input\"} %d\n", s.ValidationFailures)
	fmt.Fprintf(w, "rxlink_comparison_failures_total{kind=\"scoring_unavailable\"} %d\n", s.ScoringUnavailable)
	fmt.Fprintf(w, "rxlink_comparison_failures_total{kind=\"scoring_invalid\"} %d\n", s.ScoringInvalid)

	fmt.Fprintf(w, "# HELP rxlink_side_effect_failures_total Best-effort audit writes and verdict events that failed.\n")
	fmt.Fprintf(w, "# TYPE rxlink_side_effect_failures_total counter\n")
	fmt.Fprintf(w, "rxlink_side_effect_failures_total{effect=\"audit\"} %d\n", s.AuditFailures)
	fmt.Fprintf(w, "rxlink_side_effect_failures_total{effect=\"publish\"} %d\n", s.PublishFailures)

	fmt.Fprintf(w, "# HELP rxlink_events_duplicate_total Redelivered requests skipped by the deduper.\n")
	fmt.Fprintf(w, "# TYPE rxlink_events_duplicate_total counter\n")
	fmt.Fprintf(w, "rxlink_events_duplicate_total %d\n", s.DuplicateDeliveries)

	fmt.Fprintf(w, "# HELP rxlink_events_dead_lettered_total Requests sent to the dead letter topic.\n")
	fmt.Fprintf(w, "# TYPE rxlink_events_dead_lettered_total counter\n")
	fmt.Fprintf(w, "rxlink_events_dead_lettered_total %d\n", s.DeadLettered)
}
