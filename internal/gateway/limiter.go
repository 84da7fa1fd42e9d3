package gateway

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"Portfolio/internal/model"
)

// Unlimited значение заголовка x-rate-limit для администраторов
const Unlimited = "Infinity"

// лимиты запросов в минуту по уровню доступа
var tierLimits = map[model.Tier]int{
	model.TierGuest:         100,
	model.TierAuthenticated: 1000,
}

// LimitHeader значение x-rate-limit для уровня
func LimitHeader(t model.Tier) string {
	n, ok := tierLimits[t]
	if !ok {
		return Unlimited
	}
	return strconv.Itoa(n)
}

type limiterEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

// Limiter token bucket на каждую личность (email или IP), размер корзины зависит от уровня
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*limiterEntry
	now      func() time.Time
}

// NewLimiter создаёт пустой набор лимитеров
func NewLimiter() *Limiter {
	return &Limiter{visitors: map[string]*limiterEntry{}, now: time.Now}
}

// Allow расходует один токен ключа; для уровня без лимита всегда true
func (l *Limiter) Allow(key string, t model.Tier) bool {
	perMinute, ok := tierLimits[t]
	if !ok {
		return true
	}
	// уровень входит в ключ: после входа посетитель получает новую корзину
	key = string(t) + ":" + key
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	le, ok := l.visitors[key]
	if !ok {
		le = &limiterEntry{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)}
		l.visitors[key] = le
	}
	le.last = now
	return le.limiter.AllowN(now, 1)
}

// Sweep удаляет корзины, не использовавшиеся дольше idle
func (l *Limiter) Sweep(idle time.Duration) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, v := range l.visitors {
		if now.Sub(v.last) > idle {
			delete(l.visitors, k)
			removed++
		}
	}
	return removed
}

// Run периодически чистит неактивные корзины до отмены ctx
func (l *Limiter) Run(ctx context.Context, interval, idle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep(idle)
		}
	}
}
