package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/redis"
)

// RedsyncLocker implements Locker with the Redlock algorithm from
// go-redsync/redsync/v4. Held locks are extended in the background at a third
// of their expiration until released.
type RedsyncLocker struct {
	redsync *redsync.Redsync
	logger  logging.Logger

	mu    sync.Mutex
	locks map[string]*redsyncLock
}

type redsyncLock struct {
	mutex      *redsync.Mutex
	key        string
	expiration time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	locker     *RedsyncLocker
	once       sync.Once
}

// NewRedsyncLocker creates a locker on top of a connected Redis client
func NewRedsyncLocker(redisClient *redis.Client, logger logging.Logger) (*RedsyncLocker, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}
	if logger == nil {
		logger = logging.Component("locks")
	}

	pool := goredis.NewPool(redisClient.GetGoRedisClient())
	return &RedsyncLocker{
		redsync: redsync.New(pool),
		logger:  logger,
		locks:   make(map[string]*redsyncLock),
	}, nil
}

// AcquireLock takes the Redis mutex "lock:<key>". redsync retries for a
// bounded number of attempts before giving up.
func (rl *RedsyncLocker) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	mutex := rl.redsync.NewMutex(fmt.Sprintf("lock:%s", key), redsync.WithExpiry(expiration))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, errors.InternalError("failed to acquire distributed lock", err).WithContext("key", key)
	}

	lockCtx, cancel := context.WithCancel(context.Background())
	lock := &redsyncLock{
		mutex:      mutex,
		key:        key,
		expiration: expiration,
		ctx:        lockCtx,
		cancel:     cancel,
		locker:     rl,
	}

	rl.mu.Lock()
	rl.locks[key] = lock
	rl.mu.Unlock()

	go rl.renew(lock)
	return lock, nil
}

func (rl *RedsyncLocker) renew(lock *redsyncLock) {
	interval := lock.expiration / 3
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-lock.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			ok, err := lock.mutex.ExtendContext(ctx)
			cancel()
			if err != nil || !ok {
				rl.logger.Warn("Lost distributed lock", logging.Field{Key: "key", Value: lock.key}, logging.Err(err))
				lock.Release(context.Background())
				return
			}
		}
	}
}

// Close releases every lock still held by this locker
func (rl *RedsyncLocker) Close() error {
	rl.mu.Lock()
	held := make([]*redsyncLock, 0, len(rl.locks))
	for _, lock := range rl.locks {
		held = append(held, lock)
	}
	rl.mu.Unlock()

	for _, lock := range held {
		lock.Release(context.Background())
	}
	return nil
}

func (l *redsyncLock) Key() string {
	return l.key
}

// Release stops renewal and deletes the Redis mutex
func (l *redsyncLock) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		l.cancel()

		l.locker.mu.Lock()
		if l.locker.locks[l.key] == l {
			delete(l.locker.locks, l.key)
		}
		l.locker.mu.Unlock()

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, unlockErr := l.mutex.UnlockContext(ctx); unlockErr != nil {
			err = errors.InternalError("failed to release distributed lock", unlockErr).WithContext("key", l.key)
		}
	})
	return err
}

func (l *redsyncLock) IsHeld() bool {
	select {
	case <-l.ctx.Done():
		return false
	default:
		return true
	}
}

var (
	_ Locker = (*RedsyncLocker)(nil)
	_ Locker = (*LocalLocker)(nil)
)
