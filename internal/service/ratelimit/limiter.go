package ratelimit

import (
	"time"

	xhttp "FxPredict/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// Limiter throttles API clients by IP. Visitors idle for expiresIn are evicted.
type Limiter struct {
	store middleware.RateLimiterStore
}

// New allows bursts of burst requests and perSec sustained requests per client.
func New(burst int, perSec float64, expiresIn time.Duration) *Limiter {
	return &Limiter{
		store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSec),
			Burst:     burst,
			ExpiresIn: expiresIn,
		}),
	}
}

// Allow reports whether key may make one more request now.
func (l *Limiter) Allow(key string) bool {
	ok, err := l.store.Allow(key)
	return err == nil && ok
}

// Middleware rejects requests over the limit with a 429 envelope.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: l.store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded").WithError(err))
		},
		DenyHandler: func(c echo.Context, _ string, err error) error {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded").WithError(err))
		},
	})
}
