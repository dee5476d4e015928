package payments_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tutormarket/internal/lifecycle"
	"tutormarket/internal/payments"
	"tutormarket/models"
)

// accounts - хранилище аккаунтов, которое, как база, не перезаписывает подключённый аккаунт.
type accounts struct {
	mu    sync.Mutex
	users map[int]*models.User
}

func (a *accounts) GetUser(ctx context.Context, id int) (*models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if u, ok := a.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, lifecycle.NotFound("user", id)
}

func (a *accounts) SetPayoutAccount(ctx context.Context, userID int, account string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[userID]
	if !ok {
		return lifecycle.NotFound("user", userID)
	}
	if u.PayoutAccount != "" {
		return lifecycle.ErrInvalidState
	}
	u.PayoutAccount = account
	return nil
}

type fakeLinker struct {
	codes []string
	err   error
}

func (l *fakeLinker) AuthorizeURL(state string) string {
	return "https://connect.example.com/oauth/authorize?state=" + url.QueryEscape(state)
}

func (l *fakeLinker) LinkAccount(ctx context.Context, code string) (string, error) {
	l.codes = append(l.codes, code)
	if l.err != nil {
		return "", l.err
	}
	return "acct_" + code, nil
}

func stateOf(t *testing.T, redirect string) string {
	t.Helper()
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func newConnector() (*payments.Connector, *accounts, *fakeLinker) {
	store := &accounts{users: map[int]*models.User{
		1: {ID: 1, Username: "alice", Role: models.RoleStudent},
		2: {ID: 2, Username: "bob", Role: models.RoleTutor},
		3: {ID: 3, Username: "carol", Role: models.RoleTutor},
	}}
	linker := &fakeLinker{}
	return payments.NewConnector(store, linker, "state-secret"), store, linker
}

func TestConnectorLinksTutorAccount(t *testing.T) {
	ctx := context.Background()
	connector, store, linker := newConnector()
	bob, _ := store.GetUser(ctx, 2)

	redirect, err := connector.Start(ctx, bob)
	require.NoError(t, err)

	u, err := connector.Complete(ctx, bob, "bobcode", stateOf(t, redirect))
	require.NoError(t, err)
	require.Equal(t, "acct_bobcode", u.PayoutAccount)
	require.Equal(t, []string{"bobcode"}, linker.codes)

	// повторное подключение отклоняется до обращения к платёжной системе
	_, err = connector.Start(ctx, u)
	require.ErrorIs(t, err, payments.ErrAlreadyConnected)
	_, err = connector.Complete(ctx, u, "again", stateOf(t, redirect))
	require.ErrorIs(t, err, lifecycle.ErrInvalidState)
	require.Len(t, linker.codes, 1)
}

func TestConnectorRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		_, store, _ := newConnector()
		c := payments.NewConnector(store, nil, "state-secret")
		bob, _ := store.GetUser(ctx, 2)
		_, err := c.Start(ctx, bob)
		require.ErrorIs(t, err, payments.ErrNotConfigured)
	})

	t.Run("student", func(t *testing.T) {
		c, store, _ := newConnector()
		alice, _ := store.GetUser(ctx, 1)
		_, err := c.Start(ctx, alice)
		require.ErrorIs(t, err, lifecycle.ErrInvalidState)
	})

	t.Run("missing code", func(t *testing.T) {
		c, store, linker := newConnector()
		bob, _ := store.GetUser(ctx, 2)
		redirect, err := c.Start(ctx, bob)
		require.NoError(t, err)
		_, err = c.Complete(ctx, bob, "", stateOf(t, redirect))
		require.ErrorIs(t, err, lifecycle.ErrValidation)
		require.Empty(t, linker.codes)
	})

	t.Run("state of another tutor", func(t *testing.T) {
		c, store, linker := newConnector()
		bob, _ := store.GetUser(ctx, 2)
		carol, _ := store.GetUser(ctx, 3)
		redirect, err := c.Start(ctx, bob)
		require.NoError(t, err)
		_, err = c.Complete(ctx, carol, "code", stateOf(t, redirect))
		require.ErrorIs(t, err, lifecycle.ErrValidation)
		_, err = c.Complete(ctx, carol, "code", "garbage")
		require.ErrorIs(t, err, lifecycle.ErrValidation)
		require.Empty(t, linker.codes)
	})

	t.Run("state signed by another secret", func(t *testing.T) {
		c, store, _ := newConnector()
		other := payments.NewConnector(store, &fakeLinker{}, "other-secret")
		bob, _ := store.GetUser(ctx, 2)
		redirect, err := other.Start(ctx, bob)
		require.NoError(t, err)
		_, err = c.Complete(ctx, bob, "code", stateOf(t, redirect))
		require.ErrorIs(t, err, lifecycle.ErrValidation)
	})

	t.Run("code rejected", func(t *testing.T) {
		c, store, linker := newConnector()
		linker.err = payments.ErrLinkRejected
		bob, _ := store.GetUser(ctx, 2)
		redirect, err := c.Start(ctx, bob)
		require.NoError(t, err)
		_, err = c.Complete(ctx, bob, "stale", stateOf(t, redirect))
		require.ErrorIs(t, err, lifecycle.ErrValidation)
		u, _ := store.GetUser(ctx, 2)
		require.Empty(t, u.PayoutAccount)
	})

	t.Run("gateway down", func(t *testing.T) {
		c, store, linker := newConnector()
		linker.err = errors.New("connection reset")
		bob, _ := store.GetUser(ctx, 2)
		redirect, err := c.Start(ctx, bob)
		require.NoError(t, err)
		_, err = c.Complete(ctx, bob, "code", stateOf(t, redirect))
		require.Error(t, err)
		require.NotErrorIs(t, err, lifecycle.ErrValidation)
	})
}
