package ledger

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/getmedigital/tickchat/pkg/plan"
)

func newTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usage.json")
	l := Open(path)
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func metered(limit int) plan.Plan {
	return plan.Plan{Name: plan.FreeName, MonthlyLimit: limit}
}

func TestTryConsumeCountsUp(t *testing.T) {
	l, _ := newTestLedger(t)
	p := metered(3)

	for i := 1; i <= 3; i++ {
		d := l.TryConsume("alice", "2026-03", p)
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if d.Used != i {
			t.Errorf("request %d: used = %d", i, d.Used)
		}
		if d.Remaining != 3-i {
			t.Errorf("request %d: remaining = %d", i, d.Remaining)
		}
	}

	d := l.TryConsume("alice", "2026-03", p)
	if d.Allowed {
		t.Fatal("4th request should be denied")
	}
	if d.Limit != 3 || d.Used != 3 {
		t.Errorf("denial should report limit and usage: %+v", d)
	}
}

func TestDeniedDoesNotIncrement(t *testing.T) {
	l, _ := newTestLedger(t)
	p := metered(1)

	l.TryConsume("bob", "2026-03", p)
	for i := 0; i < 5; i++ {
		l.TryConsume("bob", "2026-03", p)
	}

	if rec := l.Usage("bob", "2026-03"); rec.Count != 1 {
		t.Errorf("denied requests must not mutate the count, got %d", rec.Count)
	}
}

func TestConcurrentConsumersAdmitExactlyLimit(t *testing.T) {
	l, _ := newTestLedger(t)
	p := metered(10)

	const n = 100
	var wg sync.WaitGroup
	allowed := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.TryConsume("carol", "2026-03", p).Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	admitted := 0
	for ok := range allowed {
		if ok {
			admitted++
		}
	}
	if admitted != 10 {
		t.Errorf("expected exactly 10 admissions, got %d", admitted)
	}
	if rec := l.Usage("carol", "2026-03"); rec.Count != 10 {
		t.Errorf("expected stored count 10, got %d", rec.Count)
	}
}

func TestNewPeriodResetsAdmission(t *testing.T) {
	l, _ := newTestLedger(t)
	p := metered(2)

	l.TryConsume("dave", "2026-03", p)
	l.TryConsume("dave", "2026-03", p)
	if d := l.TryConsume("dave", "2026-03", p); d.Allowed {
		t.Fatal("expected exhaustion in 2026-03")
	}

	d := l.TryConsume("dave", "2026-04", p)
	if !d.Allowed || d.Used != 1 {
		t.Errorf("new period should start fresh: %+v", d)
	}

	// The exhausted period's record is untouched.
	if rec := l.Usage("dave", "2026-03"); rec.Count != 2 {
		t.Errorf("old period count changed: %d", rec.Count)
	}
}

func TestUnlimitedNeverDeniedNorCounted(t *testing.T) {
	l, _ := newTestLedger(t)
	p := plan.Plan{Name: plan.PlusName, Unlimited: true}

	for i := 0; i < 1000; i++ {
		if d := l.TryConsume("erin", "2026-03", p); !d.Allowed {
			t.Fatalf("unlimited request %d denied", i)
		}
	}
	if rec := l.Usage("erin", "2026-03"); rec.Count != 0 {
		t.Errorf("unlimited tier should not be counted, got %d", rec.Count)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	p := metered(10)

	l := Open(path)
	l.TryConsume("alice", "2026-03", p)
	l.TryConsume("alice", "2026-03", p)
	l.TryConsume("bob", "2026-02", p)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	reloaded := Open(path)
	t.Cleanup(func() { _ = reloaded.Close() })

	if rec := reloaded.Usage("alice", "2026-03"); rec.Count != 2 {
		t.Errorf("alice count after reload = %d", rec.Count)
	}
	if rec := reloaded.Usage("bob", "2026-02"); rec.Count != 1 {
		t.Errorf("bob count after reload = %d", rec.Count)
	}

	snap := reloaded.SnapshotFor("2026-03")
	if len(snap.Usage) != 1 || snap.Usage["alice"] != 2 {
		t.Errorf("unexpected period snapshot: %+v", snap)
	}
}

func TestOpenWithCorruptSnapshotStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usage.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := Open(path)
	t.Cleanup(func() { _ = l.Close() })
	if rec := l.Usage("alice", "2026-03"); rec.Count != 0 {
		t.Errorf("corrupt snapshot should start empty, got %d", rec.Count)
	}
}
