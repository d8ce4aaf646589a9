// Package plan defines the service tiers and the pure admission policy that
// decides whether a request may be billed against a tier's monthly allowance.
package plan

// Plan names as they appear on the wire.
const (
	FreeName = "free"
	PlusName = "plus"
)

// Plan describes one tier: its metering limit and capability flags.
type Plan struct {
	Name         string `yaml:"-"`
	Unlimited    bool   `yaml:"-"`
	MonthlyLimit int    `yaml:"monthly_limit"`
	MaxTokens    int    `yaml:"max_tokens"`
	History      bool   `yaml:"-"`
	Images       bool   `yaml:"-"`
}

// Set holds the configured tiers.
type Set struct {
	Free Plan `yaml:"free"`
	Plus Plan `yaml:"plus"`
}

// Defaults returns the built-in tier table: free is metered at 10 chats per
// month with short replies; plus is unlimited with history and image support.
func Defaults() Set {
	return Set{
		Free: Plan{
			Name:         FreeName,
			MonthlyLimit: 10,
			MaxTokens:    512,
		},
		Plus: Plan{
			Name:      PlusName,
			Unlimited: true,
			MaxTokens: 2048,
			History:   true,
			Images:    true,
		},
	}
}

// Resolve maps a wire plan name to a tier. Anything that is not exactly
// "plus" resolves to free, so a malformed plan can never escape metering.
func (s Set) Resolve(name string) Plan {
	if name == PlusName {
		return s.Plus
	}
	return s.Free
}

// Decision is the outcome of a quota check. Used and Remaining reflect the
// state after the decided request is counted.
type Decision struct {
	Allowed   bool
	Unlimited bool
	Limit     int
	Used      int
	Remaining int
}

// Decide is the pure admission policy: given a tier and the usage consumed so
// far this period, it decides admissibility. It never mutates anything; the
// ledger owns the increment.
func Decide(p Plan, used int) Decision {
	if p.Unlimited {
		return Decision{Allowed: true, Unlimited: true}
	}
	if used >= p.MonthlyLimit {
		return Decision{Limit: p.MonthlyLimit, Used: used}
	}
	return Decision{
		Allowed:   true,
		Limit:     p.MonthlyLimit,
		Used:      used,
		Remaining: p.MonthlyLimit - used - 1,
	}
}
