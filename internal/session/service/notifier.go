package service

import (
	"context"
	"time"

	accountdomain "github.com/tsogoevz/gymdesk/backend/internal/account/domain"
	accountrepo "github.com/tsogoevz/gymdesk/backend/internal/account/repository"
	"github.com/tsogoevz/gymdesk/backend/internal/common/logger"
)

// Notifier receives best-effort side effects of session events. Calls must
// never block the session protocol and their failures never surface to it.
type Notifier interface {
	AccountRegistered(account accountdomain.Account)
	AccountLoggedIn(account accountdomain.Account, at time.Time)
}

// AsyncNotifier updates the last-login stamp and emits welcome notices in
// the background. Each call spawns a short-lived goroutine with its own
// timeout so a slow database cannot hold a login response hostage.
type AsyncNotifier struct {
	accounts accountrepo.Repository
	log      *logger.Logger
	timeout  time.Duration
}

func NewAsyncNotifier(accounts accountrepo.Repository, log *logger.Logger) *AsyncNotifier {
	return &AsyncNotifier{
		accounts: accounts,
		log:      log,
		timeout:  5 * time.Second,
	}
}

func (n *AsyncNotifier) AccountRegistered(account accountdomain.Account) {
	go func() {
		n.log.WithFields(nil, logger.Fields{
			"user_id": string(account.ID),
			"email":   account.Email,
		}).Info("welcome notification queued")
	}()
}

func (n *AsyncNotifier) AccountLoggedIn(account accountdomain.Account, at time.Time) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.accounts.UpdateLastLogin(ctx, account.ID, at); err != nil {
			n.log.WithFields(nil, logger.Fields{
				"user_id": string(account.ID),
			}).Warnf("last login update failed: %v", err)
		}
	}()
}

// NopNotifier is for tests and tools that do not care about side effects.
type NopNotifier struct{}

func (NopNotifier) AccountRegistered(accountdomain.Account)          {}
func (NopNotifier) AccountLoggedIn(accountdomain.Account, time.Time) {}
