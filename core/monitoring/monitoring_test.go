package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recordMonitor struct {
	panics  []any
	errs    []error
	tags    map[string]string
	flushed time.Duration
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = tags
}
func (r *recordMonitor) RecoverPanic(v any)    { r.panics = append(r.panics, v) }
func (r *recordMonitor) Flush(d time.Duration) { r.flushed = d }

func TestInitAndCapture(t *testing.T) {
	mon := &recordMonitor{}
	Init(mon)
	defer Init(nil)

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"module": "planner"})
	Flush(time.Second)

	if len(mon.errs) != 1 {
		t.Fatalf("expected one captured error, got %d", len(mon.errs))
	}
	if mon.tags["module"] != "planner" {
		t.Fatalf("tags not forwarded: %v", mon.tags)
	}
	if mon.flushed != time.Second {
		t.Fatalf("flush not forwarded")
	}
}

func TestInitNilRestoresNop(t *testing.T) {
	Init(&recordMonitor{})
	Init(nil)
	if _, ok := Current().(NopMonitor); !ok {
		t.Fatalf("expected NopMonitor, got %T", Current())
	}
}

func TestRecoverReportsAndRepanics(t *testing.T) {
	mon := &recordMonitor{}
	Init(mon)
	defer Init(nil)

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Fatalf("expected re-panic with boom, got %v", r)
			}
		}()
		defer Recover()
		panic("boom")
	}()
	if len(mon.panics) != 1 || mon.panics[0] != "boom" {
		t.Fatalf("panic not reported: %v", mon.panics)
	}
}
