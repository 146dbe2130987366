package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuthState is whether a user currently holds any live session
type AuthState string

const (
	Unauthenticated AuthState = "unauthenticated"
	Authenticated   AuthState = "authenticated"
)

// AuthChange is delivered to subscribers whenever a session starts or ends
type AuthChange struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Started   bool
	State     AuthState
}

// SessionTracker follows the sessions of each user in this process. A user moves to
// Authenticated with their first live session and back to Unauthenticated when the
// last one ends, whether it was signed out or ran past its expiry.
type SessionTracker struct {
	mu          sync.Mutex
	sessions    map[uuid.UUID]map[uuid.UUID]*time.Timer
	subscribers map[int]func(AuthChange)
	nextID      int
	closed      bool
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		sessions:    make(map[uuid.UUID]map[uuid.UUID]*time.Timer),
		subscribers: make(map[int]func(AuthChange)),
	}
}

// SessionStarted records a live session that ends on its own at expiresAt. A zero
// expiresAt never expires. Repeated calls for a known session are ignored.
func (t *SessionTracker) SessionStarted(userID, sessionID uuid.UUID, expiresAt time.Time) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	userSessions, ok := t.sessions[userID]
	if !ok {
		userSessions = make(map[uuid.UUID]*time.Timer)
		t.sessions[userID] = userSessions
	}
	if _, known := userSessions[sessionID]; known {
		t.mu.Unlock()
		return
	}
	var expiry *time.Timer
	if !expiresAt.IsZero() {
		expiry = time.AfterFunc(time.Until(expiresAt), func() {
			t.SessionExpired(userID, sessionID)
		})
	}
	userSessions[sessionID] = expiry
	subscribers := t.subscriberList()
	t.mu.Unlock()

	notify(subscribers, AuthChange{UserID: userID, SessionID: sessionID, Started: true, State: Authenticated})
}

// SessionEnded forgets a session and notifies subscribers, even when the session was
// never seen by this process
func (t *SessionTracker) SessionEnded(userID, sessionID uuid.UUID) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	state := t.forgetLocked(userID, sessionID)
	subscribers := t.subscriberList()
	t.mu.Unlock()

	notify(subscribers, AuthChange{UserID: userID, SessionID: sessionID, State: state})
}

// SessionExpired ends a tracked session that is no longer live in the store. Unlike
// SessionEnded it does nothing for sessions this process is not tracking, so repeated
// requests with a dead token do not notify again.
func (t *SessionTracker) SessionExpired(userID, sessionID uuid.UUID) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	if _, known := t.sessions[userID][sessionID]; !known {
		t.mu.Unlock()
		return false
	}
	state := t.forgetLocked(userID, sessionID)
	subscribers := t.subscriberList()
	t.mu.Unlock()

	notify(subscribers, AuthChange{UserID: userID, SessionID: sessionID, State: state})
	return true
}

func (t *SessionTracker) forgetLocked(userID, sessionID uuid.UUID) AuthState {
	userSessions, ok := t.sessions[userID]
	if !ok {
		return Unauthenticated
	}
	if expiry := userSessions[sessionID]; expiry != nil {
		expiry.Stop()
	}
	delete(userSessions, sessionID)
	if len(userSessions) == 0 {
		delete(t.sessions, userID)
		return Unauthenticated
	}
	return Authenticated
}

// State reports the user's current auth state
func (t *SessionTracker) State(userID uuid.UUID) AuthState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions[userID]) > 0 {
		return Authenticated
	}
	return Unauthenticated
}

// Subscribe registers fn for auth changes. fn runs on the goroutine that caused the
// change and must not block. Calling the returned function removes the subscription.
func (t *SessionTracker) Subscribe(fn func(AuthChange)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return func() {}
	}

	id := t.nextID
	t.nextID++
	t.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subscribers, id)
			t.mu.Unlock()
		})
	}
}

// Close drops every subscriber and stops tracking
func (t *SessionTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.subscribers = make(map[int]func(AuthChange))
	for _, userSessions := range t.sessions {
		for _, expiry := range userSessions {
			if expiry != nil {
				expiry.Stop()
			}
		}
	}
	t.sessions = make(map[uuid.UUID]map[uuid.UUID]*time.Timer)
}

func (t *SessionTracker) subscriberList() []func(AuthChange) {
	list := make([]func(AuthChange), 0, len(t.subscribers))
	for _, fn := range t.subscribers {
		list = append(list, fn)
	}
	return list
}

func notify(subscribers []func(AuthChange), change AuthChange) {
	for _, fn := range subscribers {
		fn(change)
	}
}
