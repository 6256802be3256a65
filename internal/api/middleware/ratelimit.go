package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/agriai/agriai/internal/api/models"
)

// Budget is a per-client allowance for one class of routes.
type Budget struct {
	Name   string
	Limit  int
	Window time.Duration
}

// PerMinute returns a budget of n requests per minute.
func PerMinute(name string, n int) Budget {
	return Budget{Name: name, Limit: n, Window: time.Minute}
}

var (
	// AIBudget covers routes that invoke a model.
	AIBudget = PerMinute("ai", 30)

	// StandardBudget covers reads and admin routes.
	StandardBudget = PerMinute("standard", 100)
)

// Throttle limits each client IP to b. The IP comes from chi's RealIP
// middleware when it runs first.
func Throttle(b Budget) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(b.Window.Seconds()))
	detail := fmt.Sprintf("The %s request budget of %d per %s is exhausted. Please try again later.", b.Name, b.Limit, b.Window)

	return httprate.Limit(
		b.Limit,
		b.Window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			problem := models.NewTooManyRequests(GetRequestID(r.Context()), detail)
			problem.Instance = r.URL.Path
			// httprate does not expose the reset time; the window is an upper bound.
			w.Header().Set("Retry-After", retryAfter)
			problem.Write(w)
		}),
	)
}
