package models

import "fmt"

// Turn is a single message in a conversation. Content is plain text; Image
// optionally carries a data URL spliced in alongside the text.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

// ImageAttachment is an inline image supplied with a chat request.
type ImageAttachment struct {
	DataURL string `json:"dataUrl"`
}

// ChatRequest is the body of POST /chat. UserID is whatever JSON value the
// caller sent; it is stringified, not validated.
type ChatRequest struct {
	Messages  []Turn           `json:"messages"`
	Plan      string           `json:"plan"`
	UserID    any              `json:"userId,omitempty"`
	SessionID string           `json:"sessionId,omitempty"`
	Image     *ImageAttachment `json:"image,omitempty"`
}

// UserKey returns the caller-supplied identifier as a string, or "" when none
// was supplied.
func (r ChatRequest) UserKey() string {
	switch v := r.UserID.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ChatResponse is the success body of POST /chat. The usage counters are null
// for unmetered plans.
type ChatResponse struct {
	Reply           string `json:"reply"`
	Plan            string `json:"plan"`
	UsedThisMonth   *int   `json:"usedThisMonth"`
	AllowedPerMonth *int   `json:"allowedPerMonth"`
}

// QuotaDeniedResponse is returned with HTTP 200 when a metered plan has
// exhausted its monthly allowance.
type QuotaDeniedResponse struct {
	Error           string `json:"error"`
	ErrorCode       string `json:"errorCode"`
	AllowedPerMonth int    `json:"allowedPerMonth"`
	UsedThisMonth   int    `json:"usedThisMonth"`
	Plan            string `json:"plan"`
}

// ErrorResponse is the uniform validation/server error body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
