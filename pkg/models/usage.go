package models

// UsageRecord counts billable requests for one identity within one accounting
// period. Period is a redundant copy of the key's period so a stale record is
// detectable after reload.
type UsageRecord struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// UsageSnapshot is the admin view of the ledger for a single period.
type UsageSnapshot struct {
	Period string         `json:"period"`
	Usage  map[string]int `json:"usage"`
}
