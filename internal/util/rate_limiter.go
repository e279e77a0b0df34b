package util

import (
	"log"
	"sync"
	"time"

	"liveconf/internal/config"
)

// LoginRateLimiter 登录速率限制器（防暴力破解）
// 以客户端IP为粒度计数，超过 maxAttempts 后锁定 lockout 时长；
// resetAfter 内无新尝试则计数清零。
type LoginRateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord

	maxAttempts int
	lockout     time.Duration
	resetAfter  time.Duration
	now         func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

type attemptRecord struct {
	failures  int
	last      time.Time
	lockUntil time.Time
}

// NewLoginRateLimiter 创建登录速率限制器并启动后台清理协程
func NewLoginRateLimiter() *LoginRateLimiter {
	rl := newLoginRateLimiter(config.LoginMaxAttempts, config.LoginLockoutDuration, config.LoginResetInterval)
	go rl.cleanupLoop(config.LoginResetInterval)
	return rl
}

func newLoginRateLimiter(maxAttempts int, lockout, resetAfter time.Duration) *LoginRateLimiter {
	return &LoginRateLimiter{
		attempts:    make(map[string]*attemptRecord),
		maxAttempts: maxAttempts,
		lockout:     lockout,
		resetAfter:  resetAfter,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
}

// Allowed 当前IP是否允许尝试登录（锁定期内返回 false 和剩余秒数）
func (rl *LoginRateLimiter) Allowed(ip string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[ip]
	if !ok {
		return true, 0
	}
	now := rl.now()
	if now.Before(rec.lockUntil) {
		return false, int(rec.lockUntil.Sub(now).Seconds()) + 1
	}
	return true, 0
}

// RecordFailure 记录一次失败尝试，返回当前失败次数
func (rl *LoginRateLimiter) RecordFailure(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rec, ok := rl.attempts[ip]
	if !ok {
		rec = &attemptRecord{}
		rl.attempts[ip] = rec
	}
	if now.Sub(rec.last) > rl.resetAfter && now.After(rec.lockUntil) {
		rec.failures = 0
	}
	rec.failures++
	rec.last = now
	if rec.failures >= rl.maxAttempts {
		rec.lockUntil = now.Add(rl.lockout)
	}
	return rec.failures
}

// RecordSuccess 登录成功后清除该IP的计数
func (rl *LoginRateLimiter) RecordSuccess(ip string) {
	rl.mu.Lock()
	delete(rl.attempts, ip)
	rl.mu.Unlock()
}

func (rl *LoginRateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup 清理已解锁且超过重置间隔的记录
func (rl *LoginRateLimiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for ip, rec := range rl.attempts {
		if now.Sub(rec.last) > rl.resetAfter && now.After(rec.lockUntil) {
			delete(rl.attempts, ip)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[INFO] 登录速率限制器：清理 %d 条过期记录", removed)
	}
	return removed
}

// Stop 停止后台清理协程（幂等）
func (rl *LoginRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}
