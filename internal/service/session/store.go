package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/gptbot/internal/model/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrStaleTranscript 表示请求发出后会话被重置，回复不再属于当前记录。
	ErrStaleTranscript = errors.New("transcript was reset while the reply was pending")
)

// Store keeps per-chat conversational state in memory.
type Store struct {
	mu    sync.RWMutex
	chats map[int64]*session.State
	ttl   time.Duration
	now   func() time.Time
}

// NewStore creates an empty store. Chats idle longer than ttl are removed by Sweep;
// a non-positive ttl disables eviction.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		chats: make(map[int64]*session.State),
		ttl:   ttl,
		now:   time.Now,
	}
}

// ensureLocked returns the chat state, creating it on first contact. Caller holds s.mu.
func (s *Store) ensureLocked(chatID int64) *session.State {
	now := s.now().UTC()
	st, ok := s.chats[chatID]
	if !ok {
		st = &session.State{
			ID:         uuid.NewString(),
			ChatID:     chatID,
			Mode:       session.ModeMain,
			Transcript: make([]session.Turn, 0, 16),
			CreatedAt:  now,
		}
		s.chats[chatID] = st
	}
	st.LastSeen = now
	return st
}

// Snapshot returns a deep copy of the chat state.
func (s *Store) Snapshot(chatID int64) session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.ensureLocked(chatID))
}

// Get returns the chat state without creating it.
func (s *Store) Get(chatID int64) (session.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.chats[chatID]
	if !ok {
		return session.State{}, ErrSessionNotFound
	}
	return copyState(st), nil
}

func (s *Store) Mode(chatID int64) session.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(chatID).Mode
}

func (s *Store) SetMode(chatID int64, mode session.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(chatID).Mode = mode
}

// SetPrompt replaces the whole transcript with a single system entry.
func (s *Store) SetPrompt(chatID int64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ensureLocked(chatID)
	st.Transcript = append(make([]session.Turn, 0, 16), session.Turn{Role: session.RoleSystem, Content: text})
	st.Generation++
}

// Append adds a turn at the end of the transcript.
func (s *Store) Append(chatID int64, role session.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ensureLocked(chatID)
	st.Transcript = append(st.Transcript, session.Turn{Role: role, Content: content})
}

// Clear empties the transcript.
func (s *Store) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ensureLocked(chatID)
	st.Transcript = make([]session.Turn, 0, 16)
	st.Generation++
}

// Transcript returns a copy of the chat transcript.
func (s *Store) Transcript(chatID int64) []session.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTurns(s.ensureLocked(chatID).Transcript)
}

// Commit appends turns atomically, provided no SetPrompt or Clear happened since the
// snapshot that produced generation. Inline images are never stored.
func (s *Store) Commit(chatID int64, generation uint64, turns ...session.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ensureLocked(chatID)
	if st.Generation != generation {
		return ErrStaleTranscript
	}
	for _, turn := range turns {
		st.Transcript = append(st.Transcript, turn.Committed())
	}
	return nil
}

func (s *Store) SetTopic(chatID int64, topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(chatID).Topic = topic
}

// RecordAnswer 记录一次测验作答并返回最新得分。
func (s *Store) RecordAnswer(chatID int64, correct bool) session.Score {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ensureLocked(chatID)
	st.Score.Total++
	if correct {
		st.Score.Correct++
	}
	return st.Score
}

func (s *Store) ResetScore(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(chatID).Score = session.Score{}
}

// Delete drops the chat state. It reports whether the chat existed.
func (s *Store) Delete(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chats[chatID]
	delete(s.chats, chatID)
	return ok
}

// List returns summaries ordered by most recent activity.
func (s *Store) List() []session.Summary {
	s.mu.RLock()
	out := make([]session.Summary, 0, len(s.chats))
	for _, st := range s.chats {
		out = append(out, session.Summary{
			ID:        st.ID,
			ChatID:    st.ChatID,
			Mode:      st.Mode,
			Topic:     st.Topic,
			Turns:     len(st.Transcript),
			CreatedAt: st.CreatedAt,
			LastSeen:  st.LastSeen,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].ChatID < out[j].ChatID
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// Sweep removes chats idle longer than the store TTL and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for chatID, st := range s.chats {
		if now.Sub(st.LastSeen) > s.ttl {
			delete(s.chats, chatID)
			removed++
		}
	}
	return removed
}

func copyState(st *session.State) session.State {
	out := *st
	out.Transcript = copyTurns(st.Transcript)
	return out
}

func copyTurns(turns []session.Turn) []session.Turn {
	copied := make([]session.Turn, len(turns))
	copy(copied, turns)
	return copied
}
