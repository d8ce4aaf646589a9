package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/getmedigital/tickchat/pkg/config"
	"github.com/getmedigital/tickchat/pkg/history"
	"github.com/getmedigital/tickchat/pkg/ledger"
	"github.com/getmedigital/tickchat/pkg/models"
	"github.com/getmedigital/tickchat/pkg/openai"
)

// stubCompleter counts calls and replays a canned reply.
type stubCompleter struct {
	mu    sync.Mutex
	calls int
	turns []openai.PromptTurn
	reply string
	err   error
}

func (s *stubCompleter) Complete(_ context.Context, turns []openai.PromptTurn, _ openai.Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.turns = turns
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newTestService(t *testing.T, stub *stubCompleter) *Service {
	t.Helper()
	dir := t.TempDir()

	l := ledger.Open(filepath.Join(dir, "usage.json"))
	t.Cleanup(func() { _ = l.Close() })
	h := history.Open(filepath.Join(dir, "conversations.json"))
	t.Cleanup(func() { _ = h.Close() })

	cfg := config.Default()
	return New(cfg, l, h, stub)
}

func userMsg(content string) []models.Turn {
	return []models.Turn{{Role: "user", Content: content}}
}

func TestEmptyTranscriptRejected(t *testing.T) {
	stub := &stubCompleter{reply: "hi"}
	svc := newTestService(t, stub)

	_, err := svc.Chat(context.Background(), models.ChatRequest{Plan: "free"}, Origin{RemoteAddr: "1.2.3.4:99"})
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
	if stub.calls != 0 {
		t.Error("invalid request must not reach the collaborator")
	}
}

func TestFreeQuotaExhaustion(t *testing.T) {
	stub := &stubCompleter{reply: "try channel 6"}
	svc := newTestService(t, stub)
	req := models.ChatRequest{Messages: userMsg("wifi slow"), Plan: "free", UserID: "u1"}

	for i := 1; i <= 10; i++ {
		res, err := svc.Chat(context.Background(), req, Origin{})
		if err != nil {
			t.Fatal(err)
		}
		if !res.Decision.Allowed {
			t.Fatalf("request %d unexpectedly denied", i)
		}
		if res.Decision.Used != i {
			t.Errorf("request %d: used = %d", i, res.Decision.Used)
		}
		if res.Decision.Limit != 10 {
			t.Errorf("request %d: limit = %d", i, res.Decision.Limit)
		}
	}

	res, err := svc.Chat(context.Background(), req, Origin{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Allowed {
		t.Fatal("11th request should be denied")
	}
	if res.Decision.Used != 10 || res.Decision.Limit != 10 {
		t.Errorf("denial counters: %+v", res.Decision)
	}
	if stub.calls != 10 {
		t.Errorf("denied request must not call the collaborator: %d calls", stub.calls)
	}
}

func TestPlusUnlimited(t *testing.T) {
	stub := &stubCompleter{reply: "ok"}
	svc := newTestService(t, stub)
	req := models.ChatRequest{Messages: userMsg("hi"), Plan: "plus", UserID: "u2"}

	for i := 0; i < 1000; i++ {
		res, err := svc.Chat(context.Background(), req, Origin{})
		if err != nil {
			t.Fatal(err)
		}
		if !res.Decision.Allowed || !res.Decision.Unlimited {
			t.Fatalf("plus request %d denied", i)
		}
	}
}

func TestCollaboratorFailureIsFailCounted(t *testing.T) {
	stub := &stubCompleter{err: errors.New("upstream down")}
	svc := newTestService(t, stub)
	req := models.ChatRequest{Messages: userMsg("hi"), Plan: "free", UserID: "u3"}

	if _, err := svc.Chat(context.Background(), req, Origin{}); err == nil {
		t.Fatal("expected collaborator error")
	}

	// The unit stays consumed: a subsequent success reports used = 2.
	stub.err = nil
	stub.reply = "ok"
	res, err := svc.Chat(context.Background(), req, Origin{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Used != 2 {
		t.Errorf("failed call should still consume a unit, used = %d", res.Decision.Used)
	}
}

func TestHistoryAppendedForPlusOnly(t *testing.T) {
	stub := &stubCompleter{reply: "answer"}
	svc := newTestService(t, stub)

	// Plus with a user ID: persisted.
	_, err := svc.Chat(context.Background(), models.ChatRequest{
		Messages: userMsg("q1"), Plan: "plus", UserID: "u4", SessionID: "s1",
	}, Origin{})
	if err != nil {
		t.Fatal(err)
	}
	conv, ok := svc.history.BySession("u4", "s1")
	if !ok {
		t.Fatal("plus exchange should be persisted")
	}
	if len(conv.Messages) != 2 || conv.Messages[1].Role != "assistant" {
		t.Errorf("unexpected transcript: %+v", conv.Messages)
	}

	// Free: not persisted.
	_, err = svc.Chat(context.Background(), models.ChatRequest{
		Messages: userMsg("q2"), Plan: "free", UserID: "u5", SessionID: "s1",
	}, Origin{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.history.BySession("u5", "s1"); ok {
		t.Error("free exchanges must not be persisted")
	}

	// Plus without a user ID: not persisted.
	_, err = svc.Chat(context.Background(), models.ChatRequest{
		Messages: userMsg("q3"), Plan: "plus",
	}, Origin{RemoteAddr: "9.9.9.9:1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.history.BySession("9.9.9.9", ""); ok {
		t.Error("anonymous exchanges must not be persisted")
	}
}

func TestDefaultSessionUsedWhenUnset(t *testing.T) {
	stub := &stubCompleter{reply: "answer"}
	svc := newTestService(t, stub)

	res, err := svc.Chat(context.Background(), models.ChatRequest{
		Messages: userMsg("q"), Plan: "plus", UserID: "u6",
	}, Origin{})
	if err != nil {
		t.Fatal(err)
	}
	if res.SessionID != history.DefaultSession {
		t.Errorf("expected default session, got %q", res.SessionID)
	}
}

func TestTranscriptWindowAndSystemPrefix(t *testing.T) {
	stub := &stubCompleter{reply: "answer"}
	svc := newTestService(t, stub)
	svc.cfg.HistoryWindow = 3

	var msgs []models.Turn
	for i := 0; i < 8; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs = append(msgs, models.Turn{Role: role, Content: string(rune('a' + i))})
	}

	_, err := svc.Chat(context.Background(), models.ChatRequest{Messages: msgs, Plan: "free", UserID: "u7"}, Origin{})
	if err != nil {
		t.Fatal(err)
	}

	// system directive + last 3 turns
	if len(stub.turns) != 4 {
		t.Fatalf("expected 4 forwarded turns, got %d", len(stub.turns))
	}
	if stub.turns[0].Role != "system" || !strings.Contains(stub.turns[0].Content, "Digital Tick AI") {
		t.Errorf("first forwarded turn should be the system directive")
	}
	if stub.turns[1].Content != "f" || stub.turns[3].Content != "h" {
		t.Errorf("window should keep the most recent turns: %+v", stub.turns[1:])
	}
}

func TestImageSplicedForPlusOnly(t *testing.T) {
	stub := &stubCompleter{reply: "that is an aerial"}
	svc := newTestService(t, stub)
	img := &models.ImageAttachment{DataURL: "data:image/png;base64,AAA"}

	_, err := svc.Chat(context.Background(), models.ChatRequest{
		Messages: userMsg("what is this?"), Plan: "plus", UserID: "u8", Image: img,
	}, Origin{})
	if err != nil {
		t.Fatal(err)
	}
	if stub.turns[1].Image == "" {
		t.Error("plus tier should forward the image on the last user turn")
	}

	_, err = svc.Chat(context.Background(), models.ChatRequest{
		Messages: userMsg("what is this?"), Plan: "free", UserID: "u9", Image: img,
	}, Origin{})
	if err != nil {
		t.Fatal(err)
	}
	if stub.turns[1].Image != "" {
		t.Error("free tier must ignore image attachments")
	}
}

func TestNumericUserIDIsStringified(t *testing.T) {
	stub := &stubCompleter{reply: "ok"}
	svc := newTestService(t, stub)

	res, err := svc.Chat(context.Background(), models.ChatRequest{
		Messages: userMsg("q"), Plan: "free", UserID: float64(42),
	}, Origin{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Identity != "42" {
		t.Errorf("expected stringified identity, got %q", res.Identity)
	}
}
