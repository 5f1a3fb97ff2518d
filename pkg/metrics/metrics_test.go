package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordApplySuccessIncrementsOkOutcome(t *testing.T) {
	AppliesTotal.Reset()

	before := testutil.ToFloat64(AppliesTotal.WithLabelValues("create_tasks", "ok"))
	RecordApply("create_tasks", NewTimer(), nil)
	after := testutil.ToFloat64(AppliesTotal.WithLabelValues("create_tasks", "ok"))

	if after != before+1 {
		t.Errorf("AppliesTotal ok counter = %v, want %v", after, before+1)
	}
}

func TestRecordApplyErrorIncrementsErrorOutcome(t *testing.T) {
	AppliesTotal.Reset()

	RecordApply("assign_task", NewTimer(), errors.New("boom"))
	got := testutil.ToFloat64(AppliesTotal.WithLabelValues("assign_task", "error"))

	if got != 1 {
		t.Errorf("AppliesTotal error counter = %v, want 1", got)
	}
}

func TestHandlerReturnsNonNil(t *testing.T) {
	if Handler() == nil {
		t.Fatal("Handler() returned nil")
	}
}
