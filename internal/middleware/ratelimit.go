package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"medrisk/internal/services"
)

// Лимитер на погашение кодов/токенов и проверку паролей: коды короткие,
// без лимита их можно перебрать.

// KeyFunc извлекает ключ группировки запросов (IP, идентификатор и т.п.).
type KeyFunc func(c *gin.Context) string

func ClientIPKey(c *gin.Context) string { return c.ClientIP() }

type keyedLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

func newKeyedLimiter(window time.Duration, burst int) *keyedLimiter {
	return &keyedLimiter{
		limiters:    map[string]*rate.Limiter{},
		limit:       rate.Every(window),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

func (kl *keyedLimiter) get(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if l, ok := kl.limiters[key]; ok {
		return l
	}
	l := rate.NewLimiter(kl.limit, kl.burst)
	kl.limiters[key] = l

	// периодическая чистка простаивающих ключей, чтобы мапа не росла вечно
	if time.Since(kl.lastCleanup) > 5*time.Minute {
		kl.lastCleanup = time.Now()
		for k, lim := range kl.limiters {
			if lim.Tokens() >= float64(kl.burst) {
				delete(kl.limiters, k)
			}
		}
	}
	return l
}

// RateLimit — token bucket на ключ: burst запросов сразу, дальше один
// на window.
func RateLimit(window time.Duration, burst int, keyFn KeyFunc) gin.HandlerFunc {
	kl := newKeyedLimiter(window, burst)
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}
		if !kl.get(key).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": services.ErrRateLimited.Error()})
			return
		}
		c.Next()
	}
}
