// Package sessionfakes provides in-memory repositories for tests.
package sessionfakes

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/vantak/gatehouse/pkg/authz/session"
	"github.com/vantak/gatehouse/pkg/errx"
	"github.com/vantak/gatehouse/pkg/kernel"
)

var fakeErrRegistry = errx.NewRegistry("SESSION_FAKE")

var (
	codeTokenNotFound = fakeErrRegistry.Register("TOKEN_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Token record not found")
	codeUserNotFound  = fakeErrRegistry.Register("USER_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User record not found")
)

// FakeTokenRepo is an in-memory session.TokenRepository.
type FakeTokenRepo struct {
	mu     sync.RWMutex
	tokens map[string]*session.Token

	// FailWith, when set, is returned from every call.
	FailWith error
}

// NewFakeTokenRepo creates an empty token repo.
func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{tokens: make(map[string]*session.Token)}
}

// Add stores a token record.
func (f *FakeTokenRepo) Add(t *session.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tokens[t.AccessToken] = &cp
}

// Get returns a stored record (for assertions).
func (f *FakeTokenRepo) Get(accessToken string) (*session.Token, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tokens[accessToken]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (f *FakeTokenRepo) FindByAccessToken(_ context.Context, accessToken string) (*session.Token, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tokens[accessToken]
	if !ok {
		return nil, fakeErrRegistry.New(codeTokenNotFound)
	}
	cp := *t
	return &cp, nil
}

func (f *FakeTokenRepo) FindActiveByUser(_ context.Context, userID kernel.UserID, now time.Time) ([]*session.Token, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	var active []*session.Token
	for _, t := range f.tokens {
		if t.UserID == userID && !t.Revoked && t.ExpiresAt.After(now) {
			cp := *t
			active = append(active, &cp)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

func (f *FakeTokenRepo) Revoke(_ context.Context, accessToken string) error {
	if f.FailWith != nil {
		return f.FailWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tokens[accessToken]; ok {
		t.Revoked = true
	}
	return nil
}

func (f *FakeTokenRepo) UpdateExpiry(_ context.Context, accessToken string, expiresAt time.Time) error {
	if f.FailWith != nil {
		return f.FailWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tokens[accessToken]; ok && !t.Revoked {
		t.ExpiresAt = expiresAt
	}
	return nil
}

// ActiveCount reports non-revoked, unexpired tokens for a user.
func (f *FakeTokenRepo) ActiveCount(userID kernel.UserID, now time.Time) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, t := range f.tokens {
		if t.UserID == userID && !t.Revoked && t.ExpiresAt.After(now) {
			n++
		}
	}
	return n
}

// FakeUserRepo is an in-memory session.UserRepository.
type FakeUserRepo struct {
	mu    sync.RWMutex
	users map[kernel.UserID]*session.User
}

// NewFakeUserRepo creates an empty user repo.
func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{users: make(map[kernel.UserID]*session.User)}
}

// Add stores a user record.
func (f *FakeUserRepo) Add(u *session.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
}

// Get returns a stored user (for assertions).
func (f *FakeUserRepo) Get(id kernel.UserID) (*session.User, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	u, ok := f.users[id]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

func (f *FakeUserRepo) FindByID(_ context.Context, id kernel.UserID) (*session.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fakeErrRegistry.New(codeUserNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *FakeUserRepo) IncrementLoginCount(_ context.Context, id kernel.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.LoginCount++
	}
	return nil
}
