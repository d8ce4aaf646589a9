// Package chat orchestrates a single chat exchange: identity and period
// resolution, quota gating, transcript shaping, the completion call, and
// history persistence.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getmedigital/tickchat/pkg/config"
	"github.com/getmedigital/tickchat/pkg/history"
	"github.com/getmedigital/tickchat/pkg/identity"
	"github.com/getmedigital/tickchat/pkg/ledger"
	"github.com/getmedigital/tickchat/pkg/models"
	"github.com/getmedigital/tickchat/pkg/openai"
	"github.com/getmedigital/tickchat/pkg/plan"
	"github.com/getmedigital/tickchat/pkg/prompt"
)

// ErrEmptyTranscript is returned when the request carries no messages.
var ErrEmptyTranscript = errors.New("messages must be a non-empty array")

// Origin carries the transport-level caller information used as an identity
// fallback.
type Origin struct {
	ForwardedFor string
	RemoteAddr   string
}

// Result is the outcome of one exchange. When Decision.Allowed is false the
// quota was exhausted: Reply is empty and nothing was forwarded or persisted.
type Result struct {
	Reply     string
	Plan      plan.Plan
	Decision  plan.Decision
	Identity  string
	Period    string
	SessionID string
}

// Service composes the ledger, conversation store and completion collaborator.
type Service struct {
	cfg       *config.Config
	ledger    *ledger.Ledger
	history   *history.Store
	completer openai.Completer
}

// New creates a Service wired with its collaborators.
func New(cfg *config.Config, l *ledger.Ledger, h *history.Store, c openai.Completer) *Service {
	return &Service{cfg: cfg, ledger: l, history: h, completer: c}
}

// Chat runs one exchange. Quota exhaustion is a normal outcome, reported in
// the Result; an error means the request was invalid or the collaborator
// failed. A collaborator failure does not refund the consumed unit.
func (s *Service) Chat(ctx context.Context, req models.ChatRequest, origin Origin) (*Result, error) {
	if len(req.Messages) == 0 {
		return nil, ErrEmptyTranscript
	}

	now := time.Now().UTC()
	userID := req.UserKey()
	id := identity.Resolve(userID, origin.ForwardedFor, origin.RemoteAddr)
	period := identity.Period(now)
	p := s.cfg.Plans.Resolve(req.Plan)

	res := &Result{Plan: p, Identity: id, Period: period, SessionID: req.SessionID}

	res.Decision = s.ledger.TryConsume(id, period, p)
	if !res.Decision.Allowed {
		return res, nil
	}

	transcript := make([]models.Turn, len(req.Messages))
	copy(transcript, req.Messages)
	if req.Image != nil && req.Image.DataURL != "" && p.Images {
		spliceImage(transcript, req.Image.DataURL)
	}

	reply, err := s.completer.Complete(ctx, promptTurns(p.Name, window(transcript, s.cfg.HistoryWindow)), openai.Options{
		MaxTokens:   p.MaxTokens,
		Temperature: s.cfg.Upstream.Temperature,
	})
	if err != nil {
		// Fail-counted: the consumed unit stays consumed.
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	res.Reply = reply

	if p.History && userID != "" {
		assistant := models.Turn{Role: "assistant", Content: reply}
		conv := s.history.Append(id, req.SessionID, transcript, assistant, now)
		res.SessionID = conv.SessionID
	}

	return res, nil
}

// window keeps only the most recent n turns. Older turns are dropped, never
// summarized.
func window(turns []models.Turn, n int) []models.Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// spliceImage attaches the image to the last user turn.
func spliceImage(turns []models.Turn, dataURL string) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "user" {
			turns[i].Image = dataURL
			return
		}
	}
}

// promptTurns prefixes the bounded transcript with the domain directive.
func promptTurns(planName string, turns []models.Turn) []openai.PromptTurn {
	out := make([]openai.PromptTurn, 0, len(turns)+1)
	out = append(out, openai.PromptTurn{Role: "system", Content: prompt.System(planName)})
	for _, t := range turns {
		out = append(out, openai.PromptTurn{Role: t.Role, Content: t.Content, Image: t.Image})
	}
	return out
}
