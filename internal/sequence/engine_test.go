package sequence

import (
	"context"
	"testing"
	"time"

	"github.com/stillpoint/drip/internal/config"
	"github.com/stillpoint/drip/internal/pkg/distlock"
	"github.com/stillpoint/drip/internal/template"
)

type fakeLock struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquired++
	return !f.held, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.released++
	return nil
}

func newTestEngine(store *memStore, lock *fakeLock) *Engine {
	p := NewProcessor(store, &fakeSender{}, template.NewService(),
		config.DeliveryConfig{FromEmail: "hello@stillpoint.example"},
		config.EngineConfig{BatchSize: 100, ClaimTTLSeconds: 300})
	p.SetClock(func() time.Time { return t0 })
	return NewEngine(p, func() distlock.DistLock { return lock }, time.Minute)
}

func TestRunOnceProcessesUnderLock(t *testing.T) {
	store := newMemStore()
	store.sequences["seq-welcome"] = welcomeSequence()
	seedSubscriber(store, "sub-1", "maya@example.com", "Maya")
	seedEnrollment(store, "enr-1", "sub-1", 1, t0)

	lock := &fakeLock{}
	eng := newTestEngine(store, lock)

	summary, err := eng.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary == nil || summary.Sent != 1 {
		t.Fatalf("summary = %+v, want one send", summary)
	}
	if lock.acquired != 1 || lock.released != 1 {
		t.Errorf("lock acquired=%d released=%d, want 1/1", lock.acquired, lock.released)
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	store := newMemStore()
	store.sequences["seq-welcome"] = welcomeSequence()
	seedSubscriber(store, "sub-1", "maya@example.com", "Maya")
	seedEnrollment(store, "enr-1", "sub-1", 1, t0)

	lock := &fakeLock{held: true}
	eng := newTestEngine(store, lock)

	summary, err := eng.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary != nil {
		t.Fatalf("summary = %+v, want nil when lock is held elsewhere", summary)
	}
	if lock.released != 0 {
		t.Error("released a lock we never held")
	}

	// Nothing was claimed or sent.
	if e := store.enrollment("enr-1"); e.CurrentStep != 1 {
		t.Errorf("enrollment advanced without the lock: step=%d", e.CurrentStep)
	}
}

func TestEngineStartStop(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(store, &fakeLock{})

	eng.Start()
	if !eng.IsHealthy() {
		t.Error("engine unhealthy right after start")
	}
	eng.Stop()

	// Stop again is a no-op.
	eng.Stop()
}
