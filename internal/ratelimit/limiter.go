// Package ratelimit 提供进程内的单用户滑动窗口限流。
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"camaral-smart-go/internal/config"
)

// Limiter 是一个内存滑动窗口限流器。
// 每个 key（userID 或 userID:channelID）在 window 内最多允许 maxRequests 次请求。
// 它是进程内唯一的共享可变结构，读-清理-追加整段由互斥锁保护；
// 多实例部署时需替换为外部共享计数器，这里不做。
type Limiter struct {
	maxRequests int
	window      time.Duration

	mu         sync.Mutex
	timestamps map[string][]time.Time
	now        func() time.Time // 可注入时钟，便于测试
}

// NewLimiter 创建一个新的 Limiter。
func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		timestamps:  make(map[string][]time.Time),
		now:         time.Now,
	}
}

func key(userID, channelID string) string {
	if channelID == "" {
		return userID
	}
	return fmt.Sprintf("%s:%s", userID, channelID)
}

// prune 丢弃窗口之外的时间戳。调用方必须持有锁。
func (l *Limiter) prune(k string, now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.timestamps[k][:0]
	for _, t := range l.timestamps[k] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.timestamps[k] = kept
}

// CheckAndRecord 在限额内时记录本次请求并返回 true；
// 达到或超过限额时不记录，返回 false（被拒绝的请求不占用后续配额）。
func (l *Limiter) CheckAndRecord(userID, channelID string) bool {
	k := key(userID, channelID)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(k, now)
	if len(l.timestamps[k]) >= l.maxRequests {
		return false
	}
	l.timestamps[k] = append(l.timestamps[k], now)
	return true
}

// CheckOnly 返回当前是否允许一次请求，但不记录。
func (l *Limiter) CheckOnly(userID, channelID string) bool {
	k := key(userID, channelID)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(k, now)
	return len(l.timestamps[k]) < l.maxRequests
}

var (
	defaultLimiter *Limiter
	defaultOnce    sync.Once
)

// Default 返回进程级的限流器单例，首次调用时按配置惰性构造。
func Default() *Limiter {
	defaultOnce.Do(func() {
		defaultLimiter = NewLimiter(
			config.Conf.RateLimit.Requests,
			time.Duration(config.Conf.RateLimit.WindowSeconds)*time.Second,
		)
	})
	return defaultLimiter
}
