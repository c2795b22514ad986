package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// newTestLimiter 返回一个使用可控时钟的限流器和推进时钟的函数。
func newTestLimiter(maxRequests int, window time.Duration) (*Limiter, func(d time.Duration)) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(maxRequests, window)
	l.now = func() time.Time { return current }
	advance := func(d time.Duration) { current = current.Add(d) }
	return l, advance
}

func TestCheckAndRecordRejectsOverLimit(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, l.CheckAndRecord("alice", "telegram"), "第 %d 次请求应被放行", i+1)
	}
	assert.False(t, l.CheckAndRecord("alice", "telegram"), "超出限额的请求应被拒绝")
}

func TestWindowSlidesAndFreesSlots(t *testing.T) {
	l, advance := newTestLimiter(2, time.Minute)

	assert.True(t, l.CheckAndRecord("alice", "telegram"))
	advance(30 * time.Second)
	assert.True(t, l.CheckAndRecord("alice", "telegram"))
	assert.False(t, l.CheckAndRecord("alice", "telegram"))

	// 第一条记录滑出窗口后腾出一个配额
	advance(31 * time.Second)
	assert.True(t, l.CheckAndRecord("alice", "telegram"))
	assert.False(t, l.CheckAndRecord("alice", "telegram"))
}

func TestRejectedRequestsDoNotConsumeQuota(t *testing.T) {
	l, advance := newTestLimiter(2, time.Minute)

	assert.True(t, l.CheckAndRecord("alice", "telegram"))
	assert.True(t, l.CheckAndRecord("alice", "telegram"))

	// 被拒绝的请求不记录时间戳，不会把窗口越推越远
	for i := 0; i < 10; i++ {
		assert.False(t, l.CheckAndRecord("alice", "telegram"))
	}

	advance(61 * time.Second)
	assert.True(t, l.CheckAndRecord("alice", "telegram"))
	assert.True(t, l.CheckAndRecord("alice", "telegram"))
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	assert.True(t, l.CheckAndRecord("alice", "telegram"))
	assert.False(t, l.CheckAndRecord("alice", "telegram"))

	// 同一用户的其他渠道和其他用户不受影响
	assert.True(t, l.CheckAndRecord("alice", "web"))
	assert.True(t, l.CheckAndRecord("bob", "telegram"))
	assert.True(t, l.CheckAndRecord("alice", ""))
}

func TestCheckOnlyDoesNotRecord(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	for i := 0; i < 5; i++ {
		assert.True(t, l.CheckOnly("alice", "telegram"))
	}
	assert.True(t, l.CheckAndRecord("alice", "telegram"))
	assert.False(t, l.CheckOnly("alice", "telegram"))
}
