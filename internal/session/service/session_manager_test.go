package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	accountdomain "github.com/tsogoevz/gymdesk/backend/internal/account/domain"
	"github.com/tsogoevz/gymdesk/backend/internal/common/clock"
	commonerrors "github.com/tsogoevz/gymdesk/backend/internal/common/errors"
	"github.com/tsogoevz/gymdesk/backend/internal/common/logger"
	sessiondomain "github.com/tsogoevz/gymdesk/backend/internal/session/domain"
	"github.com/tsogoevz/gymdesk/backend/internal/session/token"
)

const testSecret = "test-secret-key-that-is-long-enough"

type fixture struct {
	manager  *SessionManager
	store    *memStore
	accounts *mockAccounts
	codec    *token.Codec
	clock    *clock.MockClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mockClock := clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore(mockClock)
	accounts := newMockAccounts()
	codec := token.NewCodec(testSecret, mockClock, 2*time.Hour, 7*24*time.Hour)

	manager := NewSessionManager(Deps{
		Accounts: accounts,
		Store:    store,
		Codec:    codec,
		Hasher:   fakeHasher{},
		IDs:      &seqIDs{},
		Clock:    mockClock,
		Breaker:  passBreaker{},
		Notifier: NopNotifier{},
		Logger:   logger.NewDiscard(),
	})

	return &fixture{
		manager:  manager,
		store:    store,
		accounts: accounts,
		codec:    codec,
		clock:    mockClock,
	}
}

func (f *fixture) seedAccount(status accountdomain.Status) accountdomain.Account {
	account := accountdomain.Account{
		ID:           "user-1",
		Role:         accountdomain.RoleMember,
		Status:       status,
		Name:         "Anna Petrova",
		Email:        "anna@example.com",
		Username:     "anna",
		PasswordHash: "hashed:correct-horse",
		CreatedAt:    f.clock.Now(),
	}
	f.accounts.add(account)
	return account
}

func (f *fixture) login(t *testing.T) SessionResult {
	t.Helper()
	result, err := f.manager.Login(context.Background(), LoginInput{
		Identifier: "anna@example.com",
		Password:   "correct-horse",
	}, RequestMeta{IP: "10.0.0.1", UserAgent: "test-agent"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return result
}

func TestLoginIssuesTokenPair(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(accountdomain.StatusActive)

	result := f.login(t)

	if len(strings.Split(result.AccessToken, ".")) != 3 {
		t.Error("expected a three-segment access token")
	}
	if len(strings.Split(result.RefreshToken, ".")) != 3 {
		t.Error("expected a three-segment refresh token")
	}
	if result.Account.ID != "user-1" || result.Account.Username != "anna" {
		t.Errorf("unexpected account summary: %+v", result.Account)
	}

	claims, err := f.codec.VerifyRefreshToken(result.RefreshToken)
	if err != nil {
		t.Fatalf("issued refresh token does not verify: %v", err)
	}
	record, ok := f.store.byJTI(claims.JTI)
	if !ok {
		t.Fatal("expected a persisted refresh record")
	}
	if record.UserID != "user-1" || record.TokenFamily != claims.TokenFamily {
		t.Errorf("record does not match claims: %+v vs %+v", record, claims)
	}
	if record.IP != "10.0.0.1" || record.UserAgent != "test-agent" {
		t.Errorf("expected diagnostic context on the record, got %+v", record)
	}
	if record.TokenHash == result.RefreshToken {
		t.Error("raw refresh token must never be persisted")
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(accountdomain.StatusActive)

	cases := []LoginInput{
		{Identifier: "anna@example.com", Password: "wrong"},
		{Identifier: "nobody@example.com", Password: "correct-horse"},
		{Identifier: "", Password: "correct-horse"},
		{Identifier: "anna@example.com", Password: ""},
	}
	for _, input := range cases {
		_, err := f.manager.Login(context.Background(), input, RequestMeta{})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("input %+v: expected ErrInvalidCredentials, got %v", input, err)
		}
	}
}

func TestLoginInactiveAccountAllowed(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(accountdomain.StatusInactive)

	if _, err := f.manager.Login(context.Background(), LoginInput{
		Identifier: "anna@example.com",
		Password:   "correct-horse",
	}, RequestMeta{}); err != nil {
		t.Errorf("inactive accounts may still log in, got %v", err)
	}
}

func TestLoginSuspendedAccountRejected(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(accountdomain.StatusSuspended)

	_, err := f.manager.Login(context.Background(), LoginInput{
		Identifier: "anna@example.com",
		Password:   "correct-horse",
	}, RequestMeta{})
	if !errors.Is(err, ErrAccountSuspended) {
		t.Errorf("expected ErrAccountSuspended, got %v", err)
	}
}

func TestRegisterIssuesSessionAndStoresAccount(t *testing.T) {
	f := newFixture(t)

	result, err := f.manager.Register(context.Background(), RegisterInput{
		Name:     "Boris Ivanov",
		Email:    "boris@example.com",
		Username: "boris",
		Password: "long-enough-password",
	}, RequestMeta{})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if result.Account.Role != "member" {
		t.Errorf("expected default role member, got %q", result.Account.Role)
	}
	if result.Account.Status != "active" {
		t.Errorf("expected new accounts to be active, got %q", result.Account.Status)
	}
	if result.RefreshToken == "" {
		t.Error("expected registration to issue a refresh token")
	}

	stored, err := f.accounts.FindByIdentifier(context.Background(), "boris")
	if err != nil {
		t.Fatalf("account was not persisted: %v", err)
	}
	if stored.PasswordHash == "long-enough-password" {
		t.Error("password must be stored hashed")
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	cases := []RegisterInput{
		{Name: "B", Email: "boris@example.com", Username: "boris", Password: "long-enough-password"},
		{Name: "Boris", Email: "not-an-email", Username: "boris", Password: "long-enough-password"},
		{Name: "Boris", Email: "boris@example.com", Username: "b", Password: "long-enough-password"},
		{Name: "Boris", Email: "boris@example.com", Username: "boris", Password: "short"},
		{Name: "Boris", Email: "boris@example.com", Username: "boris", Password: "long-enough-password", Role: "admin"},
	}
	for _, input := range cases {
		_, err := f.manager.Register(context.Background(), input, RequestMeta{})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("input %+v: expected ErrValidation, got %v", input, err)
		}
	}
}

func TestRegisterConflicts(t *testing.T) {
	f := newFixture(t)

	f.accounts.createFn = func(ctx context.Context, account accountdomain.Account) error {
		return accountRepoEmailTaken
	}
	_, err := f.manager.Register(context.Background(), RegisterInput{
		Name:     "Boris Ivanov",
		Email:    "anna@example.com",
		Username: "boris",
		Password: "long-enough-password",
	}, RequestMeta{})
	if !errors.Is(err, commonerrors.ErrEmailAlreadyExists) {
		t.Errorf("expected ErrEmailAlreadyExists, got %v", err)
	}

	f.accounts.createFn = func(ctx context.Context, account accountdomain.Account) error {
		return accountRepoUsernameTaken
	}
	_, err = f.manager.Register(context.Background(), RegisterInput{
		Name:     "Boris Ivanov",
		Email:    "boris@example.com",
		Username: "anna",
		Password: "long-enough-password",
	}, RequestMeta{})
	if !errors.Is(err, commonerrors.ErrUsernameAlreadyExists) {
		t.Errorf("expected ErrUsernameAlreadyExists, got %v", err)
	}
}

func TestRefreshRotatesWithinFamily(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(accountdomain.StatusActive)
	login := f.login(t)

	oldClaims, _ := f.codec.VerifyRefreshToken(login.RefreshToken)

	rotated, err := f.manager.Refresh(context.Background(), login.RefreshToken, RequestMeta{})
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if rotated.RefreshToken == login.RefreshToken {
		t.Error("rotation must issue a different refresh token")
	}

	newClaims, err := f.codec.VerifyRefreshToken(rotated.RefreshToken)
	if err != nil {
		t.Fatalf("rotated token does not verify: %v", err)
	}
	if newClaims.TokenFamily != oldClaims.TokenFamily {
		t.Errorf("rotation must preserve the family: %q vs %q", newClaims.TokenFamily, oldClaims.TokenFamily)
	}
	if newClaims.JTI == oldClaims.JTI {
		t.Error("rotation must mint a fresh jti")
	}

	oldRecord, ok := f.store.byJTI(oldClaims.JTI)
	if !ok {
		t.Fatal("predecessor record disappeared")
	}
	if oldRecord.RevokedAt == nil || oldRecord.RevokedReason != sessiondomain.ReasonRotated {
		t.Errorf("predecessor must be marked rotated, got %+v", oldRecord)
	}
	if oldRecord.ReplacedBy != newClaims.JTI {
		t.Errorf("predecessor must link its successor, got %q want %q", oldRecord.ReplacedBy, newClaims.JTI)
	}
	if live := f.store.liveCount(oldClaims.TokenFamily); live != 1 {
		t.Errorf("expected exactly one live record per chain, got %d", live)
	}
}

func TestRefreshReuseRevokesWholeFamily(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(accountdomain.StatusActive)
	login := f.login(t)
	claims, _ := f.codec.VerifyRefreshToken(login.RefreshToken)

	rotated, err := f.manager.Refresh(context.Background(), login.RefreshToken, RequestMeta{})
	if err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}

	// Presenting the original, already rotated token is the reuse signal.
	if _, err := f.manager.Refresh(context.Background(), login.RefreshToken, RequestMeta{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected reuse to be rejected, got %v", err)
	}
	if live := f.store.liveCount(claims.TokenFamily); live != 0 {
		t.Errorf("reuse must revoke the whole family, %d records still live", live)
	}
	reasons := f.store.familyReasons(claims.TokenFamily)
	if reasons[sessiondomain.ReasonReuseDetected] == 0 {
		t.Errorf("expected reuse-detected revocations, got %v", reasons)
	}

	// The legitimately rotated token is collateral damage: fail closed.
	if _, err := f.manager.Refresh(context.Background(), rotated.RefreshToken, RequestMeta{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected latest token to be dead after the cascade, got %v", err)
	}
}

func TestRefreshExpiredTokenRevokesFamily(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(accountdomain.StatusActive)
	login := f.login(t)
	claims, _ := f.codec.VerifyRefreshToken(login.RefreshToken)

	f.clock.Advance(7*24*time.Hour + time.Minute)

	if _, err := f.manager.Refresh(context.Background(), login.RefreshToken, RequestMeta{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
	if live := f.store.liveCount(claims.TokenFamily); live != 0 {
		t.Errorf("expected the family to be revoked, %d records still live", live)
	}
}

func TestRefreshForgedTokenLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(accountdomain.StatusActive)
	login := f.login(t)
	claims, _ := f.codec.VerifyRefreshToken(login.RefreshToken)

	forger := token.NewCodec("attacker-controlled-secret-value!!", f.clock, 2*time.Hour, 7*24*time.Hour)
	forged, _, err := forger.IssueRefreshToken("user-1", claims.TokenFamily, "forged-jti")
	if err != nil {
		t.Fatalf("failed to forge token: %v", err)
	}

	if _, err := f.manager.Refresh(context.Background(), forged, RequestMeta{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected forged token to be rejected, got %v", err)
	}
	if live := f.store.liveCount(claims.TokenFamily); live != 1 {
		t.Errorf("a signature failure must not mutate state, got %d live records", live)
	}
}

func TestRefreshWellSignedUnknownTokenRevokesClaimedFamily(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(accountdomain.StatusActive)
	login := f.login(t)
	claims, _ := f.codec.VerifyRefreshToken(login.RefreshToken)

	// Correct signature, claims name a real family, but no record exists
	// for this jti. Reads as replay of a purged token.
	stray, _, err := f.codec.IssueRefreshToken("user-1", claims.TokenFamily, "never-persisted-jti")
	if err != nil {
		t.Fatalf("failed to issue stray token: %v", err)
	}

	if _, err := f.manager.Refresh(context.Background(), stray, RequestMeta{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected unknown token to be rejected, got %v", err)
	}
	if live := f.store.liveCount(claims.TokenFamily); live != 0 {
		t.Errorf("expected the claimed family to be revoked, %d records still live", live)
	}
	reasons := f.store.familyReasons(claims.TokenFamily)
	if reasons[sessiondomain.ReasonReuseDetected] == 0 {
		t.Errorf("expected reuse-detected revocations, got %v", reasons)
	}
}

func TestRefreshSuspendedAccountRevokesFamily(t *testing.T) {
	f := newFixture(t)
	account := f.seedAccount(accountdomain.StatusActive)
	login := f.login(t)
	claims, _ := f.codec.VerifyRefreshToken(login.RefreshToken)

	account.Status = accountdomain.StatusSuspended
	f.accounts.add(account)

	if _, err := f.manager.Refresh(context.Background(), login.RefreshToken, RequestMeta{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected suspended account refresh to fail, got %v", err)
	}
	if live := f.store.liveCount(claims.TokenFamily); live != 0 {
		t.Errorf("suspension must revoke the family, %d records still live", live)
	}
}

func TestConcurrentRefreshHasSingleWinner(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(accountdomain.StatusActive)
	login := f.login(t)

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.manager.Refresh(context.Background(), login.RefreshToken, RequestMeta{})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrInvalidRefreshToken) {
			t.Errorf("losers must see the standard rejection, got %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly one winner, got %d", successes)
	}
}

func TestRefreshStoreFailureIsTransientNotUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(accountdomain.StatusActive)
	login := f.login(t)

	f.store.findErr = fmt.Errorf("connection refused")

	_, err := f.manager.Refresh(context.Background(), login.RefreshToken, RequestMeta{})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
	if errors.Is(err, ErrInvalidRefreshToken) {
		t.Error("a store outage must never read as an invalid token")
	}
}

func TestLogoutRevokesFamily(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(accountdomain.StatusActive)
	login := f.login(t)
	claims, _ := f.codec.VerifyRefreshToken(login.RefreshToken)

	if err := f.manager.Logout(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if live := f.store.liveCount(claims.TokenFamily); live != 0 {
		t.Errorf("logout must revoke the family, %d records still live", live)
	}
	reasons := f.store.familyReasons(claims.TokenFamily)
	if reasons[sessiondomain.ReasonRevoked] == 0 {
		t.Errorf("expected revoked reason on logout, got %v", reasons)
	}

	// Logging out twice is harmless.
	if err := f.manager.Logout(context.Background(), login.RefreshToken); err != nil {
		t.Errorf("repeated logout should be a no-op, got %v", err)
	}
}
