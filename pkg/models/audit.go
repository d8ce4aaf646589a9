package models

import "time"

// AuditEntry records one chat exchange for the offline audit trail. Identities
// are stored hashed, with a short prefix kept for operator lookups.
type AuditEntry struct {
	RequestID      string    `json:"request_id"`
	IdentityHash   string    `json:"identity_hash"`
	IdentityPrefix string    `json:"identity_prefix"`
	Plan           string    `json:"plan"`
	SessionID      string    `json:"session_id"`
	Period         string    `json:"period"`
	StatusCode     int       `json:"status_code"`
	UsedCount      int       `json:"used_count"`
	PromptChars    int       `json:"prompt_chars"`
	ReplyChars     int       `json:"reply_chars"`
	LatencyMs      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuditConfig controls the audit logging subsystem.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	RequestID      string
	Plan           string
	IdentityPrefix string
	SessionID      string
	Since          time.Time
	Limit          int
}

// AuditStat holds aggregate audit counts for a plan/day combination.
type AuditStat struct {
	Plan  string
	Day   string
	Count int
}
