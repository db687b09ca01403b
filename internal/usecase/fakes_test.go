package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arklim/account-recovery/internal/core/domain"
	"github.com/arklim/account-recovery/internal/core/port"
	"github.com/arklim/account-recovery/internal/repository"
)

var fixedNow = time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: fixedNow}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memoryUserRepo struct {
	mu        sync.Mutex
	byID      map[string]domain.User
	createErr error
	lookupErr error

	// skipExistenceCheck hides users from GetByEmail to simulate a lost race.
	skipExistenceCheck bool
	creates            int
	passwordUpdates    int
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{byID: map[string]domain.User{}}
}

func (r *memoryUserRepo) add(user domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[user.ID] = user
}

func (r *memoryUserRepo) get(id string) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

func (r *memoryUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.byID {
		if existing.Email == user.Email {
			return fmt.Errorf("insert user: %w", repository.ErrConflict)
		}
	}
	r.byID[user.ID] = user
	r.creates++
	return nil
}

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok || !user.IsActive {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	if r.skipExistenceCheck {
		return nil, repository.ErrNotFound
	}
	for _, user := range r.byID {
		if user.Email == email && user.IsActive {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepo) UpdatePassword(_ context.Context, id string, hash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok || !user.IsActive {
		return repository.ErrNotFound
	}
	user.PasswordHash = hash
	user.UpdatedAt = changedAt
	r.byID[id] = user
	r.passwordUpdates++
	return nil
}

func (r *memoryUserRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LastLogin = &at
	r.byID[id] = user
	return nil
}

// memoryLedger mirrors the Postgres ledger: lookups join on active users and resolve
// the newest (email, code) row.
type memoryLedger struct {
	mu       sync.Mutex
	users    *memoryUserRepo
	clock    *testClock
	tokens   []domain.ResetToken
	codes    []string
	next     int
	rotates  int
	markErr  error
	mutation int
}

func newMemoryLedger(users *memoryUserRepo, clock *testClock, codes ...string) *memoryLedger {
	return &memoryLedger{users: users, clock: clock, codes: codes}
}

func (l *memoryLedger) nextCode() string {
	if l.next < len(l.codes) {
		code := l.codes[l.next]
		l.next++
		return code
	}
	l.next++
	return fmt.Sprintf("%06d", l.next)
}

func (l *memoryLedger) Issue(_ context.Context, userID string, ttl time.Duration) (domain.ResetToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.issueLocked(userID, ttl), nil
}

func (l *memoryLedger) issueLocked(userID string, ttl time.Duration) domain.ResetToken {
	now := l.clock.Now()
	token := domain.ResetToken{
		ID:        fmt.Sprintf("token-%d", len(l.tokens)+1),
		UserID:    userID,
		Code:      l.nextCode(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	l.tokens = append(l.tokens, token)
	l.mutation++
	return token
}

func (l *memoryLedger) Rotate(_ context.Context, userID string, ttl time.Duration) (domain.ResetToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invalidateLocked(userID)
	l.rotates++
	return l.issueLocked(userID, ttl), nil
}

func (l *memoryLedger) Lookup(_ context.Context, email, code string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Tokens are appended in issue order, so the last match is the newest.
	var newest *domain.ResetToken
	for i := len(l.tokens) - 1; i >= 0; i-- {
		token := l.tokens[i]
		user := l.users.get(token.UserID)
		if user.Email == email && user.IsActive && token.Code == code {
			newest = &token
			break
		}
	}
	if newest == nil || !newest.IsActive(l.clock.Now()) {
		return "", repository.ErrNotFound
	}
	return newest.UserID, nil
}

func (l *memoryLedger) MarkUsed(_ context.Context, userID, code string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.markErr != nil {
		return false, l.markErr
	}
	changed := false
	for i := range l.tokens {
		if l.tokens[i].UserID == userID && l.tokens[i].Code == code && !l.tokens[i].Used {
			l.tokens[i].Used = true
			changed = true
		}
	}
	if changed {
		l.mutation++
	}
	return changed, nil
}

func (l *memoryLedger) InvalidateAll(_ context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.invalidateLocked(userID), nil
}

func (l *memoryLedger) invalidateLocked(userID string) int64 {
	var count int64
	for i := range l.tokens {
		if l.tokens[i].UserID == userID && !l.tokens[i].Used {
			l.tokens[i].Used = true
			count++
		}
	}
	if count > 0 {
		l.mutation++
	}
	return count
}

func (l *memoryLedger) ActiveToken(_ context.Context, userID string) (*domain.ResetToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	var newest *domain.ResetToken
	for i := range l.tokens {
		token := l.tokens[i]
		if token.UserID != userID || !token.IsActive(now) {
			continue
		}
		if newest == nil || !token.CreatedAt.Before(newest.CreatedAt) {
			t := token
			newest = &t
		}
	}
	if newest == nil {
		return nil, repository.ErrNotFound
	}
	return newest, nil
}

func (l *memoryLedger) activeCount(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, token := range l.tokens {
		if token.UserID == userID && token.IsActive(l.clock.Now()) {
			count++
		}
	}
	return count
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "hashed:"+password, nil
}

type sentMessage struct {
	kind  string
	email string
	code  string
	name  string
}

type recordingNotifier struct {
	mu         sync.Mutex
	sent       []sentMessage
	codeErr    error
	changedErr error
}

func (n *recordingNotifier) SendResetCode(_ context.Context, email, code, displayName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codeErr != nil {
		return n.codeErr
	}
	n.sent = append(n.sent, sentMessage{kind: "code", email: email, code: code, name: displayName})
	return nil
}

func (n *recordingNotifier) SendPasswordChanged(_ context.Context, email, displayName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.changedErr != nil {
		return n.changedErr
	}
	n.sent = append(n.sent, sentMessage{kind: "changed", email: email, name: displayName})
	return nil
}

func (n *recordingNotifier) codes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, msg := range n.sent {
		if msg.kind == "code" {
			out = append(out, msg.code)
		}
	}
	return out
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, msg := range n.sent {
		if msg.kind == kind {
			total++
		}
	}
	return total
}

type recordingEvents struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	requested  []domain.PasswordResetRequestedEvent
	changed    []domain.PasswordChangedEvent
	err        error
}

func (e *recordingEvents) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = append(e.registered, event)
	return e.err
}

func (e *recordingEvents) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requested = append(e.requested, event)
	return e.err
}

func (e *recordingEvents) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changed = append(e.changed, event)
	return e.err
}

// stubIssuer encodes the user id into the token so tests can validate without signing.
type stubIssuer struct {
	expired map[string]bool
}

func (stubIssuer) Issue(user domain.User) (string, error) {
	return "session:" + user.ID + ":" + user.Email, nil
}

func (s stubIssuer) Validate(token string) (*port.SessionClaims, error) {
	if s.expired[token] {
		return nil, errors.New("session expired")
	}
	rest, ok := strings.CutPrefix(token, "session:")
	if !ok {
		return nil, errors.New("session malformed")
	}
	id, email, ok := strings.Cut(rest, ":")
	if !ok {
		return nil, errors.New("session malformed")
	}
	return &port.SessionClaims{UserID: id, Email: email, IssuedAt: fixedNow, ExpiresAt: fixedNow.Add(24 * time.Hour)}, nil
}

var (
	_ port.UserRepository   = (*memoryUserRepo)(nil)
	_ port.ResetTokenLedger = (*memoryLedger)(nil)
	_ port.Notifier         = (*recordingNotifier)(nil)
	_ port.EventPublisher   = (*recordingEvents)(nil)
	_ port.SessionIssuer    = stubIssuer{}
)
