package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	accountdomain "github.com/tsogoevz/gymdesk/backend/internal/account/domain"
	accountrepo "github.com/tsogoevz/gymdesk/backend/internal/account/repository"
	"github.com/tsogoevz/gymdesk/backend/internal/common/clock"
	sessiondomain "github.com/tsogoevz/gymdesk/backend/internal/session/domain"
	"github.com/tsogoevz/gymdesk/backend/internal/session/repository"
)

var (
	accountRepoNotFound      = accountrepo.ErrAccountNotFound
	accountRepoEmailTaken    = accountrepo.ErrEmailTaken
	accountRepoUsernameTaken = accountrepo.ErrUsernameTaken
)

// memStore is an in-memory RefreshTokenStore with the same conditional
// update semantics as the SQL implementation, safe for concurrent use.
type memStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	records map[string]*sessiondomain.RefreshTokenRecord

	findErr   error
	createErr error
	rotateErr error
}

func newMemStore(clk clock.Clock) *memStore {
	return &memStore{
		clock:   clk,
		records: make(map[string]*sessiondomain.RefreshTokenRecord),
	}
}

func (s *memStore) Create(ctx context.Context, record sessiondomain.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	copied := record
	s.records[record.ID] = &copied
	return nil
}

func (s *memStore) FindByTokenHash(ctx context.Context, hash string) (sessiondomain.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return sessiondomain.RefreshTokenRecord{}, s.findErr
	}
	for _, record := range s.records {
		if record.TokenHash == hash {
			return *record, nil
		}
	}
	return sessiondomain.RefreshTokenRecord{}, repository.ErrRecordNotFound
}

func (s *memStore) MarkRotated(ctx context.Context, recordID string, newJTI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rotateErr != nil {
		return s.rotateErr
	}
	record, ok := s.records[recordID]
	if !ok || record.RevokedAt != nil {
		return repository.ErrAlreadyRotated
	}
	now := s.clock.Now()
	record.RevokedAt = &now
	record.RevokedReason = sessiondomain.ReasonRotated
	record.ReplacedBy = newJTI
	return nil
}

func (s *memStore) RevokeFamily(ctx context.Context, userID string, tokenFamily string, reason sessiondomain.RevokeReason) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	var revoked int64
	for _, record := range s.records {
		if record.UserID == userID && record.TokenFamily == tokenFamily && record.RevokedAt == nil {
			record.RevokedAt = &now
			record.RevokedReason = reason
			revoked++
		}
	}
	return revoked, nil
}

func (s *memStore) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, record := range s.records {
		if record.ExpiresAt.Before(olderThan) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memStore) liveCount(tokenFamily string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, record := range s.records {
		if record.TokenFamily == tokenFamily && record.RevokedAt == nil {
			count++
		}
	}
	return count
}

func (s *memStore) byJTI(jti string) (sessiondomain.RefreshTokenRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.JTI == jti {
			return *record, true
		}
	}
	return sessiondomain.RefreshTokenRecord{}, false
}

func (s *memStore) familyReasons(tokenFamily string) map[sessiondomain.RevokeReason]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	reasons := make(map[sessiondomain.RevokeReason]int)
	for _, record := range s.records {
		if record.TokenFamily == tokenFamily && record.RevokedAt != nil {
			reasons[record.RevokedReason]++
		}
	}
	return reasons
}

type mockAccounts struct {
	mu       sync.Mutex
	accounts map[accountdomain.ID]accountdomain.Account

	findByIdentifierFn func(ctx context.Context, identifier string) (accountdomain.Account, error)
	findByIDFn         func(ctx context.Context, id accountdomain.ID) (accountdomain.Account, error)
	createFn           func(ctx context.Context, account accountdomain.Account) error
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{accounts: make(map[accountdomain.ID]accountdomain.Account)}
}

func (m *mockAccounts) add(account accountdomain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
}

func (m *mockAccounts) Create(ctx context.Context, account accountdomain.Account) error {
	if m.createFn != nil {
		return m.createFn(ctx, account)
	}
	m.add(account)
	return nil
}

func (m *mockAccounts) FindByID(ctx context.Context, id accountdomain.ID) (accountdomain.Account, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return accountdomain.Account{}, accountRepoNotFound
	}
	return account, nil
}

func (m *mockAccounts) FindByIdentifier(ctx context.Context, identifier string) (accountdomain.Account, error) {
	if m.findByIdentifierFn != nil {
		return m.findByIdentifierFn(ctx, identifier)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if account.Email == identifier || account.Username == identifier {
			return account, nil
		}
	}
	return accountdomain.Account{}, accountRepoNotFound
}

func (m *mockAccounts) UpdateLastLogin(ctx context.Context, id accountdomain.ID, at time.Time) error {
	return nil
}

// fakeHasher keeps password checks cheap and deterministic. The manager
// treats hashing as an opaque capability, so equality is good enough here.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Compare(hash string, password string) error {
	if hash != "hashed:"+password {
		return fmt.Errorf("password mismatch")
	}
	return nil
}

// seqIDs hands out predictable identifiers so tests can assert on them.
type seqIDs struct {
	mu   sync.Mutex
	next int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%04d", g.next), nil
}

// passBreaker runs the call directly, no failure accounting.
type passBreaker struct{}

func (passBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
