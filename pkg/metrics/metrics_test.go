package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDirectoryLoad(t *testing.T) {
	before := testutil.ToFloat64(directoryLoadsTotal.WithLabelValues("success"))
	RecordDirectoryLoad(3*time.Millisecond, true)
	after := testutil.ToFloat64(directoryLoadsTotal.WithLabelValues("success"))
	if after-before != 1 {
		t.Errorf("expected success counter to grow by 1, grew by %v", after-before)
	}
}

func TestCacheLookupLabels(t *testing.T) {
	hit := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit"))
	shared := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("shared"))

	RecordCacheHit()
	RecordSharedLoad()
	RecordSharedLoad()

	if got := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")) - hit; got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("shared")) - shared; got != 2 {
		t.Errorf("expected 2 shared loads, got %v", got)
	}
}

func TestRecordMutationAndRejection(t *testing.T) {
	ok := testutil.ToFloat64(mutationsTotal.WithLabelValues("rename", "success"))
	rejected := testutil.ToFloat64(mutationsTotal.WithLabelValues("rename", "rejected"))

	RecordMutation("rename", time.Millisecond, true)
	RecordRejectedMutation("rename")

	if got := testutil.ToFloat64(mutationsTotal.WithLabelValues("rename", "success")) - ok; got != 1 {
		t.Errorf("expected 1 successful rename, got %v", got)
	}
	if got := testutil.ToFloat64(mutationsTotal.WithLabelValues("rename", "rejected")) - rejected; got != 1 {
		t.Errorf("expected 1 rejected rename, got %v", got)
	}
}

func TestRecordFlattenSetsGauge(t *testing.T) {
	RecordFlatten("full", time.Microsecond, 42)
	if got := testutil.ToFloat64(visibleRows); got != 42 {
		t.Errorf("expected visible rows gauge 42, got %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordStorageOperation("fs", "list", time.Millisecond, false)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"notetree_storage_operations_total", "notetree_visible_rows"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in exposition output", name)
		}
	}
}
