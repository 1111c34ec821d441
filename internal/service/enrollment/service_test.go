package enrollment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stillpoint/drip/internal/domain"
	"github.com/stillpoint/drip/internal/service/enrollment"
)

// memRepo is an in-memory enrollment repository for unit testing. Its
// CreateActive mirrors the database's atomic insert-with-conflict-check.
type memRepo struct {
	mu          sync.Mutex
	sequences   map[string]*domain.Sequence // keyed by trigger key
	enrollments map[string]*domain.Enrollment
	sendLog     map[string][]domain.SendLogEntry
}

func newMemRepo() *memRepo {
	return &memRepo{
		sequences:   make(map[string]*domain.Sequence),
		enrollments: make(map[string]*domain.Enrollment),
		sendLog:     make(map[string][]domain.SendLogEntry),
	}
}

func (m *memRepo) addSequence(seq *domain.Sequence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[seq.TriggerKey] = seq
}

func (m *memRepo) FindActiveSequenceByTrigger(_ context.Context, triggerKey string) (*domain.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.sequences[triggerKey]
	if !ok || seq.Status != domain.SequenceActive {
		return nil, enrollment.ErrSequenceNotFound
	}
	cp := *seq
	return &cp, nil
}

func (m *memRepo) CreateActive(_ context.Context, e *domain.Enrollment) (bool, *domain.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.enrollments {
		if existing.SubscriberID == e.SubscriberID && existing.SequenceID == e.SequenceID &&
			(existing.Status == domain.EnrollmentActive || existing.Status == domain.EnrollmentProcessing) {
			cp := *existing
			return false, &cp, nil
		}
	}
	cp := *e
	m.enrollments[cp.ID] = &cp
	return true, nil, nil
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, enrollment.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memRepo) Cancel(_ context.Context, subscriberID, sequenceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.enrollments {
		if e.SubscriberID == subscriberID && e.SequenceID == sequenceID &&
			(e.Status == domain.EnrollmentActive || e.Status == domain.EnrollmentProcessing) {
			e.Status = domain.EnrollmentCancelled
			n++
		}
	}
	return n, nil
}

func (m *memRepo) CancelAllForSubscriber(_ context.Context, subscriberID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.enrollments {
		if e.SubscriberID == subscriberID &&
			(e.Status == domain.EnrollmentActive || e.Status == domain.EnrollmentProcessing) {
			e.Status = domain.EnrollmentCancelled
			n++
		}
	}
	return n, nil
}

func (m *memRepo) List(_ context.Context, f enrollment.ListFilter) ([]domain.Enrollment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Enrollment
	for _, e := range m.enrollments {
		if f.SubscriberID != "" && e.SubscriberID != f.SubscriberID {
			continue
		}
		if f.Status != "" && string(e.Status) != f.Status {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *memRepo) ListSendLog(_ context.Context, enrollmentID string) ([]domain.SendLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SendLogEntry(nil), m.sendLog[enrollmentID]...), nil
}

func welcomeSequence() *domain.Sequence {
	return &domain.Sequence{
		ID:         "seq-welcome",
		Name:       "Welcome",
		TriggerKey: "newsletter_signup",
		Status:     domain.SequenceActive,
		Steps: []domain.SequenceStep{
			{Position: 1, DelayDays: 0, Subject: "Welcome"},
			{Position: 2, DelayDays: 3, Subject: "Tip #1"},
			{Position: 3, DelayDays: 7, Subject: "Tip #2"},
		},
	}
}

func TestEnroll(t *testing.T) {
	repo := newMemRepo()
	repo.addSequence(welcomeSequence())
	svc := enrollment.NewService(repo)

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return t0 })

	res, err := svc.Enroll(context.Background(), "sub-1", "newsletter_signup")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if res.Outcome != enrollment.OutcomeEnrolled {
		t.Fatalf("Outcome = %q, want enrolled", res.Outcome)
	}
	if res.Enrollment.CurrentStep != 1 {
		t.Errorf("CurrentStep = %d, want 1", res.Enrollment.CurrentStep)
	}
	if !res.Enrollment.DueAt.Equal(t0) {
		t.Errorf("DueAt = %v, want %v", res.Enrollment.DueAt, t0)
	}
}

func TestEnrollNoSequenceIsSkipNotError(t *testing.T) {
	svc := enrollment.NewService(newMemRepo())

	res, err := svc.Enroll(context.Background(), "sub-1", "unknown_trigger")
	if err != nil {
		t.Fatalf("Enroll must not error on unknown trigger: %v", err)
	}
	if res.Outcome != enrollment.OutcomeNoSequence {
		t.Errorf("Outcome = %q, want no_sequence", res.Outcome)
	}
	if res.Enrollment != nil {
		t.Errorf("Enrollment = %+v, want nil", res.Enrollment)
	}
}

func TestEnrollInactiveSequenceSkipped(t *testing.T) {
	repo := newMemRepo()
	seq := welcomeSequence()
	seq.Status = domain.SequenceDraft
	repo.addSequence(seq)
	svc := enrollment.NewService(repo)

	res, err := svc.Enroll(context.Background(), "sub-1", "newsletter_signup")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if res.Outcome != enrollment.OutcomeNoSequence {
		t.Errorf("Outcome = %q, want no_sequence for draft sequence", res.Outcome)
	}
}

func TestEnrollIdempotent(t *testing.T) {
	repo := newMemRepo()
	repo.addSequence(welcomeSequence())
	svc := enrollment.NewService(repo)
	ctx := context.Background()

	first, err := svc.Enroll(ctx, "sub-1", "newsletter_signup")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	second, err := svc.Enroll(ctx, "sub-1", "newsletter_signup")
	if err != nil {
		t.Fatalf("Enroll (second): %v", err)
	}
	if second.Outcome != enrollment.OutcomeAlreadyEnrolled {
		t.Errorf("Outcome = %q, want already_enrolled", second.Outcome)
	}
	if second.Enrollment.ID != first.Enrollment.ID {
		t.Errorf("second enroll returned a different row: %s vs %s",
			second.Enrollment.ID, first.Enrollment.ID)
	}
}

func TestEnrollConcurrentSingleRow(t *testing.T) {
	repo := newMemRepo()
	repo.addSequence(welcomeSequence())
	svc := enrollment.NewService(repo)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := svc.Enroll(ctx, "sub-1", "newsletter_signup"); err != nil {
				t.Errorf("Enroll: %v", err)
			}
		}()
	}
	wg.Wait()

	rows, total, err := svc.List(ctx, enrollment.ListFilter{SubscriberID: "sub-1", Status: "active"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("expected exactly one active enrollment, got %d", total)
	}
}

func TestCancelIsNoOpWithoutEnrollment(t *testing.T) {
	svc := enrollment.NewService(newMemRepo())
	if err := svc.Cancel(context.Background(), "sub-ghost", "seq-ghost"); err != nil {
		t.Fatalf("Cancel must be a no-op when nothing exists: %v", err)
	}
}

func TestCancelAll(t *testing.T) {
	repo := newMemRepo()
	repo.addSequence(welcomeSequence())
	second := welcomeSequence()
	second.ID = "seq-resource"
	second.TriggerKey = "resource_download"
	repo.addSequence(second)

	svc := enrollment.NewService(repo)
	ctx := context.Background()

	svc.Enroll(ctx, "sub-1", "newsletter_signup")
	svc.Enroll(ctx, "sub-1", "resource_download")

	n, err := svc.CancelAll(ctx, "sub-1")
	if err != nil {
		t.Fatalf("CancelAll: %v", err)
	}
	if n != 2 {
		t.Errorf("cancelled %d enrollments, want 2", n)
	}

	_, total, _ := svc.List(ctx, enrollment.ListFilter{SubscriberID: "sub-1", Status: "active"})
	if total != 0 {
		t.Errorf("%d active enrollments remain after CancelAll", total)
	}
}
