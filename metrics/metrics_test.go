package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTraining(t *testing.T) {
	before := testutil.ToFloat64(TrainingRuns.WithLabelValues("content", "error"))
	RecordTraining("content", time.Second, errors.New("boom"))
	if got := testutil.ToFloat64(TrainingRuns.WithLabelValues("content", "error")); got != before+1 {
		t.Fatalf("training runs = %v, want %v", got, before+1)
	}
}

func TestRecordPrediction(t *testing.T) {
	before := testutil.ToFloat64(Predictions.WithLabelValues("hybrid", "ok"))
	RecordPrediction("hybrid", time.Millisecond, false)
	if got := testutil.ToFloat64(Predictions.WithLabelValues("hybrid", "ok")); got != before+1 {
		t.Fatalf("predictions = %v, want %v", got, before+1)
	}
}

func TestOutcome(t *testing.T) {
	if Outcome(nil) != "ok" || Outcome(errors.New("x")) != "error" {
		t.Fatal("unexpected outcome labels")
	}
}
