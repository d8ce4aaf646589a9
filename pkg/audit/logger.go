// Package audit keeps an optional SQLite trail of chat exchanges for
// operators. Writes happen off the request path and are best-effort; the
// service never waits on or fails because of the audit log.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/getmedigital/tickchat/pkg/models"
)

// Logger writes and queries audit entries in a dedicated SQLite database.
type Logger struct {
	db   *sql.DB
	cfg  models.AuditConfig
	done chan struct{}
	wg   sync.WaitGroup
}

// New opens the audit database and creates the schema.
func New(cfg models.AuditConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:   db,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.retentionLoop()

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS chat_audit (
		request_id      TEXT PRIMARY KEY,
		identity_hash   TEXT NOT NULL,
		identity_prefix TEXT NOT NULL,
		plan            TEXT NOT NULL,
		session_id      TEXT,
		period          TEXT NOT NULL,
		status_code     INTEGER,
		used_count      INTEGER,
		prompt_chars    INTEGER,
		reply_chars     INTEGER,
		latency_ms      INTEGER,
		created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_chat_audit_plan ON chat_audit(plan)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_chat_audit_created ON chat_audit(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_chat_audit_prefix ON chat_audit(identity_prefix)`)
	return err
}

// Log inserts an audit entry.
func (l *Logger) Log(ctx context.Context, entry models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chat_audit
		(request_id, identity_hash, identity_prefix, plan, session_id, period,
		 status_code, used_count, prompt_chars, reply_chars, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.IdentityHash, entry.IdentityPrefix,
		entry.Plan, entry.SessionID, entry.Period,
		entry.StatusCode, entry.UsedCount, entry.PromptChars, entry.ReplyChars,
		entry.LatencyMs, entry.CreatedAt,
	)
	return err
}

// Query returns audit entries matching the given options.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	q := `SELECT request_id, identity_hash, identity_prefix, plan, session_id, period,
		status_code, used_count, prompt_chars, reply_chars, latency_ms, created_at
		FROM chat_audit WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.Plan != "" {
		q += " AND plan = ?"
		args = append(args, opts.Plan)
	}
	if opts.IdentityPrefix != "" {
		q += " AND identity_prefix = ?"
		args = append(args, opts.IdentityPrefix)
	}
	if opts.SessionID != "" {
		q += " AND session_id = ?"
		args = append(args, opts.SessionID)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since)
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var sessionID sql.NullString
		if err := rows.Scan(
			&e.RequestID, &e.IdentityHash, &e.IdentityPrefix, &e.Plan,
			&sessionID, &e.Period,
			&e.StatusCode, &e.UsedCount, &e.PromptChars, &e.ReplyChars,
			&e.LatencyMs, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.SessionID = sessionID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns aggregate counts grouped by plan and day.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT plan, date(created_at) as day, count(*) as cnt
		 FROM chat_audit GROUP BY plan, day ORDER BY day DESC, plan`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var day sql.NullString
		if err := rows.Scan(&s.Plan, &day, &s.Count); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM chat_audit WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}

// HashIdentity returns the SHA-256 hex hash and 8-char prefix for an
// identity, so operators can correlate entries without storing raw
// identifiers or addresses.
func HashIdentity(id string) (hash, prefix string) {
	h := sha256.Sum256([]byte(id))
	hash = hex.EncodeToString(h[:])
	if len(id) > 8 {
		prefix = id[:8]
	} else {
		prefix = id
	}
	return hash, prefix
}
