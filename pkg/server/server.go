// Package server exposes the HTTP surface: chat, history, health and the
// admin usage snapshot.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/getmedigital/tickchat/pkg/audit"
	"github.com/getmedigital/tickchat/pkg/chat"
	"github.com/getmedigital/tickchat/pkg/config"
	"github.com/getmedigital/tickchat/pkg/history"
	"github.com/getmedigital/tickchat/pkg/identity"
	"github.com/getmedigital/tickchat/pkg/ledger"
	"github.com/getmedigital/tickchat/pkg/models"
)

// Server is the tickchat HTTP server.
type Server struct {
	cfg     *config.Config
	svc     *chat.Service
	ledger  *ledger.Ledger
	history *history.Store
	auditor *audit.Logger
	mux     *http.ServeMux
}

// New creates a Server wired with all dependencies. auditor may be nil.
func New(cfg *config.Config, svc *chat.Service, l *ledger.Ledger, h *history.Store, auditor *audit.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		ledger:  l,
		history: h,
		auditor: auditor,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("/chat", s.handleChat)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/history", s.handleHistory)
	s.mux.HandleFunc("/admin/usage", s.handleAdminUsage)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.applyCORS(w, r) {
		return
	}
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("tickchat listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// applyCORS writes the CORS headers and reports whether the request was a
// handled preflight.
func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin != "" && s.originAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	start := time.Now()
	res, err := s.svc.Chat(r.Context(), req, chat.Origin{
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RemoteAddr:   r.RemoteAddr,
	})
	if err != nil {
		if errors.Is(err, chat.ErrEmptyTranscript) {
			writeJSONError(w, http.StatusBadRequest, "validation failed", err.Error())
			return
		}
		log.Printf("chat %s: %v", requestID, err)
		writeJSONError(w, http.StatusBadGateway, "completion failed", err.Error())
		return
	}

	if !res.Decision.Allowed {
		s.logAudit(requestID, req, res, http.StatusOK, 0, start)
		writeJSON(w, http.StatusOK, models.QuotaDeniedResponse{
			Error:           "Monthly free limit reached. Upgrade to Plus for unlimited chats.",
			ErrorCode:       "LIMIT_REACHED",
			AllowedPerMonth: res.Decision.Limit,
			UsedThisMonth:   res.Decision.Used,
			Plan:            res.Plan.Name,
		})
		return
	}

	resp := models.ChatResponse{Reply: res.Reply, Plan: res.Plan.Name}
	if !res.Decision.Unlimited {
		used, allowed := res.Decision.Used, res.Decision.Limit
		resp.UsedThisMonth = &used
		resp.AllowedPerMonth = &allowed
	}
	s.logAudit(requestID, req, res, http.StatusOK, len(res.Reply), start)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	q := r.URL.Query()
	id := identity.Resolve(q.Get("userId"), r.Header.Get("X-Forwarded-For"), r.RemoteAddr)

	if session := q.Get("sessionId"); session != "" {
		conv, ok := s.history.BySession(id, session)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "conversation not found", "")
			return
		}
		writeJSON(w, http.StatusOK, conv)
		return
	}

	if latest := q.Get("latest"); latest == "1" || latest == "true" {
		conv, ok := s.history.Latest(id)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "no conversations", "")
			return
		}
		writeJSON(w, http.StatusOK, conv)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.history.Summaries(id),
	})
}

func (s *Server) handleAdminUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	if s.cfg.AdminKey == "" {
		writeJSONError(w, http.StatusInternalServerError, "admin key not configured", "")
		return
	}
	if r.URL.Query().Get("key") != s.cfg.AdminKey {
		writeJSONError(w, http.StatusForbidden, "forbidden", "")
		return
	}

	period := identity.Period(time.Now())
	writeJSON(w, http.StatusOK, s.ledger.SnapshotFor(period))
}

// logAudit records an exchange off the request path; failures are logged only.
func (s *Server) logAudit(requestID string, req models.ChatRequest, res *chat.Result, status, replyChars int, start time.Time) {
	if s.auditor == nil {
		return
	}

	promptChars := 0
	for _, m := range req.Messages {
		promptChars += len(m.Content)
	}
	hash, prefix := audit.HashIdentity(res.Identity)
	entry := models.AuditEntry{
		RequestID:      requestID,
		IdentityHash:   hash,
		IdentityPrefix: prefix,
		Plan:           res.Plan.Name,
		SessionID:      res.SessionID,
		Period:         res.Period,
		StatusCode:     status,
		UsedCount:      res.Decision.Used,
		PromptChars:    promptChars,
		ReplyChars:     replyChars,
		LatencyMs:      time.Since(start).Milliseconds(),
		CreatedAt:      time.Now().UTC(),
	}
	go func() {
		if err := s.auditor.Log(context.Background(), entry); err != nil {
			log.Printf("audit log error: %v", err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, code int, message, detail string) {
	writeJSON(w, code, models.ErrorResponse{Error: message, Detail: detail})
}
