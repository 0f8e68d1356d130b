// Package session links user twins into shared sessions. A session is the
// unit the allocator apportions shared resources against.
//
// All public methods are safe for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrEmptySession is returned when Link is given no usable user id.
	ErrEmptySession = errors.New("session has no members")

	// ErrSessionNotFound is returned for operations on an unknown session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionID is returned when the session id is blank.
	ErrInvalidSessionID = errors.New("session id is required")
)

// Session is a set of linked user twins.
type Session struct {
	ID       string    `json:"id"`
	Members  []string  `json:"members"` // first occurrence order, no duplicates
	LinkedAt time.Time `json:"linked_at"`
}

// Observer is notified after a session is linked, re-linked or unlinked.
// Notifications are delivered after the linker lock is released, so an
// observer may call back into the Linker.
type Observer interface {
	SessionChanged(ctx context.Context, sessionID string)
}

// Linker maintains the session table.
type Linker struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	observers []Observer
	now       func() time.Time
}

// NewLinker creates an empty linker.
func NewLinker() *Linker {
	return &Linker{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// AddObserver registers o for session change notifications.
func (l *Linker) AddObserver(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

// Link creates or replaces the membership of sessionID and returns the
// confirmed session. Blank user ids are dropped and duplicates collapse to
// their first occurrence.
func (l *Linker) Link(ctx context.Context, sessionID string, userIDs []string) (Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Session{}, ErrInvalidSessionID
	}
	members := dedupMembers(userIDs)
	if len(members) == 0 {
		return Session{}, fmt.Errorf("%w: %s", ErrEmptySession, sessionID)
	}

	l.mu.Lock()
	sess := &Session{ID: sessionID, Members: members, LinkedAt: l.now()}
	l.sessions[sessionID] = sess
	result := copySession(sess)
	observers := l.snapshotObservers()
	l.mu.Unlock()

	notify(ctx, observers, sessionID)
	return result, nil
}

// Unlink removes sessionID. Observers release whatever was apportioned
// under it.
func (l *Linker) Unlink(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	if _, ok := l.sessions[sessionID]; !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(l.sessions, sessionID)
	observers := l.snapshotObservers()
	l.mu.Unlock()

	notify(ctx, observers, sessionID)
	return nil
}

// MembersOf returns the members of sessionID in link order.
func (l *Linker) MembersOf(sessionID string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sess, ok := l.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return append([]string(nil), sess.Members...), nil
}

// Get returns a copy of sessionID, or false when it is not active.
func (l *Linker) Get(sessionID string) (Session, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sess, ok := l.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return copySession(sess), true
}

// Sessions returns every active session sorted by id.
func (l *Linker) Sessions() []Session {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Session, 0, len(l.sessions))
	for _, s := range l.sessions {
		out = append(out, copySession(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// snapshotObservers must be called with l.mu held.
func (l *Linker) snapshotObservers() []Observer {
	return append([]Observer(nil), l.observers...)
}

func notify(ctx context.Context, observers []Observer, sessionID string) {
	for _, o := range observers {
		o.SessionChanged(ctx, sessionID)
	}
}

func dedupMembers(userIDs []string) []string {
	seen := make(map[string]bool, len(userIDs))
	members := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	return members
}

func copySession(s *Session) Session {
	cp := *s
	cp.Members = append([]string(nil), s.Members...)
	return cp
}
