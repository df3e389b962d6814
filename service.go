package iris

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mpetrov/iris/transport"
)

// Service exposes the conversational captioning operations to the caller:
// start a conversation around an image, ask follow-ups, clear the session.
// Calls for the same session key are serialized end-to-end; calls for
// distinct keys proceed independently. No retries, no backoff: a failed
// call is surfaced to the caller, who decides whether to retry.
type Service struct {
	client  transport.Client
	store   *SessionStore
	builder *MessageBuilder
	logger  *log.Logger

	mu    sync.Mutex // guards locks
	locks map[string]*sync.Mutex
}

// NewService wires a Service. A nil logger falls back to the default logger.
func NewService(client transport.Client, store *SessionStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		client:  client,
		store:   store,
		builder: NewMessageBuilder(),
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Store returns the underlying session store.
func (s *Service) Store() *SessionStore { return s.store }

// sessionLock returns the mutex serializing work for one session key.
// Entries live for the process, bounded by the number of distinct callers.
func (s *Service) sessionLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// StartConversation opens a conversation for sessionID around the given
// image and returns the model's answer. An existing conversation under the
// same key is replaced wholesale. The session is created at record time: a
// transport failure leaves no session behind (and any prior conversation
// untouched), while an unparseable response records the user turn (so a
// later Ask still has the image in context) but no assistant turn.
func (s *Service) StartConversation(ctx context.Context, sessionID, prompt string, image []byte) (string, error) {
	if sessionID == "" {
		return "", ErrEmptySessionKey
	}

	l := s.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	turns := s.builder.BuildInitial(prompt, image)
	answer, err := s.exchange(ctx, sessionID, turns, true)
	if err != nil {
		return "", err
	}

	s.logger.Debug("conversation started", "session", sessionID, "backend", s.client.Name())
	return answer, nil
}

// Ask continues the conversation for sessionID with a text-only follow-up.
// Fails with ErrNoActiveSession, before any transport call, if no
// conversation has been started for the key.
func (s *Service) Ask(ctx context.Context, sessionID, prompt string) (string, error) {
	if sessionID == "" {
		return "", ErrEmptySessionKey
	}

	l := s.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	sess, ok := s.store.Get(sessionID)
	if !ok {
		return "", ErrNoActiveSession
	}

	turns := s.builder.BuildFollowUp(sess.Turns(), prompt)
	return s.exchange(ctx, sessionID, turns, false)
}

// ClearSession removes all conversation state for sessionID. Always
// succeeds, including for unknown keys.
func (s *Service) ClearSession(sessionID string) {
	if sessionID == "" {
		return
	}

	l := s.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	s.store.Clear(sessionID)
	s.logger.Debug("session cleared", "session", sessionID)
}

// exchange performs one call/extract/record cycle. turns is the full
// sequence to send; its last element is the new user turn to record.
func (s *Service) exchange(ctx context.Context, sessionID string, turns []transport.Turn, create bool) (string, error) {
	start := time.Now()
	raw, err := s.client.Chat(ctx, turns)
	if err != nil {
		return "", &TransportError{Backend: s.client.Name(), Err: err}
	}
	s.logger.Debug("model call finished", "session", sessionID, "elapsed", time.Since(start))

	if create {
		// A new conversation replaces any prior one under the same key, so
		// the image always sits in the first turn. Resetting happens at
		// record time: a failed call leaves the old conversation intact.
		s.store.Clear(sessionID)
		s.store.GetOrCreate(sessionID)
	}

	userTurn := turns[len(turns)-1]
	answer, err := ExtractText(raw)
	if err != nil {
		if aerr := s.store.Append(sessionID, userTurn); aerr != nil {
			return "", aerr
		}
		return "", err
	}

	if err := s.store.Append(sessionID, userTurn, transport.TextTurn(transport.RoleAssistant, answer)); err != nil {
		return "", err
	}
	return answer, nil
}
