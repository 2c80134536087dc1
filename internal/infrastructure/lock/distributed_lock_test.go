package lock

import (
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func TestMemberLockKey(t *testing.T) {
	assert.Equal(t, "sacco:lock:member:42", MemberLockKey(42))
}

func TestNewMemberLock_UniqueOwner(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	a := NewMemberLock(client, 7, time.Second)
	b := NewMemberLock(client, 7, time.Second)

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.value, b.value)
	assert.Equal(t, time.Second, a.expiration)
}
