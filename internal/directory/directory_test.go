package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

type fakeUsers struct {
	users map[string]domain.User
	err   error
}

func (f *fakeUsers) Create(ctx context.Context, user *domain.User) error { return nil }

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (f *fakeUsers) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	return nil, nil
}

func TestStore_GetUser(t *testing.T) {
	store := NewStore(&fakeUsers{users: map[string]domain.User{
		"u-1": {ID: "u-1", Name: "Dana", Role: domain.RoleFinance},
	}})

	user, err := store.GetUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleFinance, user.Role)

	_, err = store.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_OutageIsNotNotFound(t *testing.T) {
	outage := errors.New("connection reset")
	store := NewStore(&fakeUsers{err: outage})

	_, err := store.GetUser(context.Background(), "u-1")
	assert.ErrorIs(t, err, outage)
	assert.NotErrorIs(t, err, ErrNotFound)
}

type countingDirectory struct {
	calls int32
	gate  chan struct{}
}

func (c *countingDirectory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	atomic.AddInt32(&c.calls, 1)
	<-c.gate
	return &domain.User{ID: id, Role: domain.RoleManager}, nil
}

func TestCached_CoalescesConcurrentLookups(t *testing.T) {
	next := &countingDirectory{gate: make(chan struct{})}
	cached := NewCached(next, nil, time.Minute, nil)

	var wg sync.WaitGroup
	results := make([]*domain.User, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := cached.GetUser(context.Background(), "u-1")
			assert.NoError(t, err)
			results[i] = user
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(next.gate)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&next.calls), int32(len(results)))
	for _, user := range results {
		require.NotNil(t, user)
		assert.Equal(t, "u-1", user.ID)
	}
	results[0].Role = domain.RoleRequester
	assert.Equal(t, domain.RoleManager, results[1].Role)
}
