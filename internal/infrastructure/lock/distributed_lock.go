package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 社员维度分布式锁
// ============================================================================
//
// 同一社员的存取款、放款、还款必须串行执行，否则两笔并发取款
// 可能都读到同一余额。数据库层已有 SELECT ... FOR UPDATE，
// 这里的锁用于在进入数据库事务前就把并发请求挡在外面，减少行锁等待。
//
// 加锁：SET key value NX EX timeout
// 释放：Lua 脚本比较 value 后再删除，避免误删他人持有的锁
//
// ============================================================================

var ErrLockFailed = errors.New("failed to acquire member lock")

const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 锁持有者标识
	expiration time.Duration
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Err()
}

// Key 锁对应的 Redis key
func (l *DistributedLock) Key() string {
	return l.key
}

// MemberLockKey 社员锁 key
func MemberLockKey(memberID int64) string {
	return fmt.Sprintf("sacco:lock:member:%d", memberID)
}

// NewMemberLock 创建社员交易锁，value 使用随机 token 标识持有者
func NewMemberLock(client *redis.Client, memberID int64, ttl time.Duration) *DistributedLock {
	return NewDistributedLock(client, MemberLockKey(memberID), uuid.NewString(), ttl)
}
