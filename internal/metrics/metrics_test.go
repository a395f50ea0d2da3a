package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	counters   []call
	histograms []call
	gauges     []call
	flushCount int
}

type call struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, call{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, call{name, value, labels})
}

func (f *fakeBackend) SetGauge(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gauges = append(f.gauges, call{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func install(t *testing.T) *fakeBackend {
	t.Helper()
	orig := backend
	t.Cleanup(func() { backend = orig })
	fb := &fakeBackend{}
	backend = fb
	return fb
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := install(t)

	RecordStep("jobA", "decode", nil, 2*time.Second)
	RecordStep("jobB", "write", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("calls: counters=%d histograms=%d, want 2/2", len(fb.counters), len(fb.histograms))
	}

	c0 := fb.counters[0]
	if c0.name != StepTotal || c0.value != 1 {
		t.Fatalf("counter[0] = %#v; want %s delta=1", c0, StepTotal)
	}
	if c0.labels["job"] != "jobA" || c0.labels["step"] != "decode" || c0.labels["status"] != "success" {
		t.Fatalf("counter[0].labels = %v", c0.labels)
	}
	if h0 := fb.histograms[0]; h0.name != StepDuration || h0.value < 1.999 || h0.value > 2.001 {
		t.Fatalf("hist[0] = %#v; want ~2s", h0)
	}

	if got := fb.counters[1].labels["status"]; got != "failure" {
		t.Fatalf("counter[1].labels[status]=%q; want failure", got)
	}
	if h1 := fb.histograms[1]; h1.value < 1.499 || h1.value > 1.501 {
		t.Fatalf("hist[1].value=%v; want ~1.5", h1.value)
	}
}

func TestRecordRowBatchesAndBytes(t *testing.T) {
	fb := install(t)

	RecordRow("job", "title_rows", 3)
	RecordRow("job", "title_rows", 0) // ignored
	RecordRow("job", "parse_errors", -1)
	RecordBatches("job", 2)
	RecordBatches("job", 0)
	RecordBytesRead("job", 4096)
	RecordRetry("job")

	want := []call{
		{RecordsTotal, 3, Labels{"job": "job", "kind": "title_rows"}},
		{BatchesTotal, 2, Labels{"job": "job"}},
		{BytesReadTotal, 4096, Labels{"job": "job"}},
		{WriteRetryTotal, 1, Labels{"job": "job"}},
	}
	if len(fb.counters) != len(want) {
		t.Fatalf("got %d counter calls, want %d: %#v", len(fb.counters), len(want), fb.counters)
	}
	for i, w := range want {
		g := fb.counters[i]
		if g.name != w.name || g.value != w.value {
			t.Errorf("counter[%d] = %s/%v; want %s/%v", i, g.name, g.value, w.name, w.value)
		}
		for k, v := range w.labels {
			if g.labels[k] != v {
				t.Errorf("counter[%d].labels[%s]=%q; want %q", i, k, g.labels[k], v)
			}
		}
	}
}

func TestRecordResidentMemory(t *testing.T) {
	fb := install(t)

	RecordResidentMemory("job", 1<<20)

	if len(fb.gauges) != 1 {
		t.Fatalf("got %d gauge calls, want 1", len(fb.gauges))
	}
	if g := fb.gauges[0]; g.name != ResidentBytes || g.value != 1<<20 {
		t.Fatalf("gauge = %#v", g)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	SetBackend(fb)
	if backend != fb {
		t.Fatal("SetBackend did not replace global backend")
	}

	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("expected flushCount=1, got %d", fb.flushCount)
	}

	SetBackend(nil)
	if backend != fb {
		t.Fatal("SetBackend(nil) should not change backend")
	}
}
