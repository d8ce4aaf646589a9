// Package ledger is the usage-metering store: it counts billable requests per
// identity per accounting period and is the sole enforcement point for the
// "at most N billable requests per identity per period" guarantee.
package ledger

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/getmedigital/tickchat/pkg/models"
	"github.com/getmedigital/tickchat/pkg/plan"
	"github.com/getmedigital/tickchat/pkg/snapshot"
)

// Ledger owns the identity→period→count map. In-memory state is
// authoritative; the snapshot file is a best-effort durability layer rewritten
// asynchronously after each mutation.
type Ledger struct {
	path string

	mu      sync.Mutex
	records map[string]map[string]*models.UsageRecord

	dirty chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
}

// Open loads the ledger snapshot at path and starts the background flusher.
// A missing or unreadable snapshot is logged and the ledger starts empty.
func Open(path string) *Ledger {
	l := &Ledger{
		path:    path,
		records: make(map[string]map[string]*models.UsageRecord),
		dirty:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	if err := snapshot.Load(path, &l.records); err != nil {
		log.Printf("ledger: starting empty: %v", err)
		l.records = make(map[string]map[string]*models.UsageRecord)
	}
	if l.records == nil {
		l.records = make(map[string]map[string]*models.UsageRecord)
	}

	l.wg.Add(1)
	go l.flushLoop()
	return l
}

// Usage returns the stored record for (identity, period), or a fresh zero
// record when none exists or the stored period does not match.
func (l *Ledger) Usage(identity, period string) models.UsageRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec, ok := l.records[identity][period]; ok && rec.Period == period {
		return *rec
	}
	return models.UsageRecord{Period: period}
}

// TryConsume atomically checks the tier's allowance and, when admitted on a
// metered tier, consumes one unit. The check and increment hold one lock so
// two concurrent requests at the limit can never both be admitted. Unmetered
// tiers are admitted without touching the map. A mutation schedules an
// asynchronous snapshot rewrite; the caller never waits on disk.
func (l *Ledger) TryConsume(identity, period string, p plan.Plan) plan.Decision {
	if p.Unlimited {
		return plan.Decide(p, 0)
	}

	l.mu.Lock()
	rec, ok := l.records[identity][period]
	if !ok || rec.Period != period {
		rec = &models.UsageRecord{Period: period}
	}

	d := plan.Decide(p, rec.Count)
	if !d.Allowed {
		l.mu.Unlock()
		return d
	}

	rec.Count++
	d.Used = rec.Count
	if l.records[identity] == nil {
		l.records[identity] = make(map[string]*models.UsageRecord)
	}
	l.records[identity][period] = rec
	l.mu.Unlock()

	l.markDirty()
	return d
}

// SnapshotFor returns per-identity counts for one period. Identities with no
// usage in that period are omitted.
func (l *Ledger) SnapshotFor(period string) models.UsageSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	usage := make(map[string]int)
	for identity, periods := range l.records {
		if rec, ok := periods[period]; ok && rec.Period == period {
			usage[identity] = rec.Count
		}
	}
	return models.UsageSnapshot{Period: period, Usage: usage}
}

// Close stops the flusher and writes a final snapshot.
func (l *Ledger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.persist()
}

func (l *Ledger) markDirty() {
	select {
	case l.dirty <- struct{}{}:
	default:
	}
}

// flushLoop rewrites the snapshot after mutations. Writes are coalesced: a
// burst of increments produces one rewrite. Failures are logged only; the
// in-flight requests already returned.
func (l *Ledger) flushLoop() {
	defer l.wg.Done()
	for {
		select {
		case <-l.done:
			return
		case <-l.dirty:
			if err := l.persist(); err != nil {
				log.Printf("ledger: persist failed: %v", err)
			}
		}
	}
}

func (l *Ledger) persist() error {
	l.mu.Lock()
	data, err := json.Marshal(l.records)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	return snapshot.StoreBytes(l.path, data)
}
