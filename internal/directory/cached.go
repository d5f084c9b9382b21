package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

const cacheKeyPrefix = "ticket-workflow:directory:user:"

type cachedUser struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Role         domain.Role `json:"role"`
	DepartmentID string      `json:"department_id"`
}

// Cached coalesces concurrent lookups of the same user and, when a Redis
// client is given, caches hits for ttl. Cache failures fall through to next.
type Cached struct {
	next   Directory
	client redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// NewCached wraps next. client may be nil.
func NewCached(next Directory, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *Cached) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := c.fromCache(ctx, id); ok {
		return user, nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		user, err := c.next.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		c.store(ctx, user)
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	user := *v.(*domain.User)
	return &user, nil
}

func (c *Cached) fromCache(ctx context.Context, id string) (*domain.User, bool) {
	if c.client == nil || c.ttl <= 0 {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKeyPrefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("directory cache read", zap.String("user_id", id), zap.Error(err))
		}
		return nil, false
	}
	var cu cachedUser
	if err := json.Unmarshal(raw, &cu); err != nil {
		return nil, false
	}
	return &domain.User{ID: cu.ID, Name: cu.Name, Role: cu.Role, DepartmentID: cu.DepartmentID}, true
}

func (c *Cached) store(ctx context.Context, user *domain.User) {
	if c.client == nil || c.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(cachedUser{ID: user.ID, Name: user.Name, Role: user.Role, DepartmentID: user.DepartmentID})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+user.ID, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("directory cache write", zap.String("user_id", user.ID), zap.Error(err))
	}
}
