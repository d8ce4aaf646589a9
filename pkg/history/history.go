// Package history persists per-identity conversation transcripts across
// restarts. Each identity owns one conversation per session; every successful
// billable exchange appends exactly one assistant turn.
package history

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/getmedigital/tickchat/pkg/models"
	"github.com/getmedigital/tickchat/pkg/snapshot"
)

// DefaultSession is the session key used when the caller does not supply one.
const DefaultSession = "default"

// Store owns the identity→session→conversation map, with the same
// load-at-startup / best-effort async snapshot discipline as the ledger.
type Store struct {
	path string

	mu            sync.Mutex
	conversations map[string]map[string]*models.Conversation

	dirty chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
}

// Open loads the conversation snapshot at path and starts the background
// flusher. A missing or unreadable snapshot is logged and the store starts
// empty.
func Open(path string) *Store {
	s := &Store{
		path:          path,
		conversations: make(map[string]map[string]*models.Conversation),
		dirty:         make(chan struct{}, 1),
		done:          make(chan struct{}),
	}

	if err := snapshot.Load(path, &s.conversations); err != nil {
		log.Printf("history: starting empty: %v", err)
		s.conversations = make(map[string]map[string]*models.Conversation)
	}
	if s.conversations == nil {
		s.conversations = make(map[string]map[string]*models.Conversation)
	}

	s.wg.Add(1)
	go s.flushLoop()
	return s
}

// Append stores the full transcript plus the new assistant turn under
// (identity, session). The first append for a session sets CreatedAt; every
// append refreshes UpdatedAt. The write schedules an asynchronous snapshot
// rewrite.
func (s *Store) Append(identity, session string, transcript []models.Turn, reply models.Turn, now time.Time) models.Conversation {
	if session == "" {
		session = DefaultSession
	}

	messages := make([]models.Turn, 0, len(transcript)+1)
	messages = append(messages, transcript...)
	messages = append(messages, reply)

	s.mu.Lock()
	conv, ok := s.conversations[identity][session]
	if !ok {
		conv = &models.Conversation{SessionID: session, CreatedAt: now}
		if s.conversations[identity] == nil {
			s.conversations[identity] = make(map[string]*models.Conversation)
		}
		s.conversations[identity][session] = conv
	}
	conv.Messages = messages
	conv.UpdatedAt = now
	out := cloneConversation(conv)
	s.mu.Unlock()

	s.markDirty()
	return out
}

// BySession returns the conversation for (identity, session), if any.
func (s *Store) BySession(identity, session string) (models.Conversation, bool) {
	if session == "" {
		session = DefaultSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[identity][session]
	if !ok {
		return models.Conversation{}, false
	}
	return cloneConversation(conv), true
}

// Latest returns the identity's most recently updated conversation. Ties go
// to the lexically smallest session key so the answer is deterministic.
func (s *Store) Latest(identity string) (models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *models.Conversation
	for _, conv := range s.conversations[identity] {
		if best == nil ||
			conv.UpdatedAt.After(best.UpdatedAt) ||
			(conv.UpdatedAt.Equal(best.UpdatedAt) && conv.SessionID < best.SessionID) {
			best = conv
		}
	}
	if best == nil {
		return models.Conversation{}, false
	}
	return cloneConversation(best), true
}

// Summaries lists metadata for all of an identity's conversations, most
// recently updated first.
func (s *Store) Summaries(identity string) []models.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]models.ConversationSummary, 0, len(s.conversations[identity]))
	for _, conv := range s.conversations[identity] {
		summaries = append(summaries, models.ConversationSummary{
			SessionID:    conv.SessionID,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
		})
	}
	sortSummaries(summaries)
	return summaries
}

// Close stops the flusher and writes a final snapshot.
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()
	return s.persist()
}

func (s *Store) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Store) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.dirty:
			if err := s.persist(); err != nil {
				log.Printf("history: persist failed: %v", err)
			}
		}
	}
}

func (s *Store) persist() error {
	s.mu.Lock()
	data, err := json.Marshal(s.conversations)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return snapshot.StoreBytes(s.path, data)
}

func cloneConversation(c *models.Conversation) models.Conversation {
	out := *c
	out.Messages = make([]models.Turn, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// sortSummaries orders newest first; session key breaks ties.
func sortSummaries(summaries []models.ConversationSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
		}
		return summaries[i].SessionID < summaries[j].SessionID
	})
}
