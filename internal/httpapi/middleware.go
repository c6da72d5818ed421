package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/auth"
	"github.com/emaland/cmp/internal/errs"
	"github.com/emaland/cmp/internal/store"
)

type claimsKey struct{}

func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return c
}

// loggingMW logs every request once it has been served.
func loggingMW(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func(start time.Time) {
				log.Info("Request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("query", r.URL.RawQuery),
					zap.Int("status_code", ww.Status()),
					zap.Int("response_size", ww.BytesWritten()),
					zap.String("remote", r.RemoteAddr),
					zap.Duration("took", time.Since(start)))
			}(time.Now())
			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// recoverMW turns a panic into the generic 500 envelope.
func recoverMW(a *api) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					a.log.Error("Panic serving request",
						zap.String("request_id", middleware.GetReqID(r.Context())),
						zap.String("path", r.URL.Path),
						zap.Any("panic", v),
						zap.ByteString("stack", debug.Stack()))
					a.fail(w, r, fmt.Errorf("panic: %v", v))
				}
			}()
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics() *httpMetrics {
	labels := []string{"method", "path", "status"}
	return &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests served.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cmp",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time spent serving HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
}

func (m *httpMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.duration}
}

func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func(start time.Time) {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			label := prometheus.Labels{
				"method": r.Method,
				"path":   routePattern(r),
				"status": fmt.Sprintf("%dXX", status/100),
			}
			m.duration.With(label).Observe(time.Since(start).Seconds())
			m.requests.With(label).Inc()
		}(time.Now())
		next.ServeHTTP(ww, r)
	}
	return http.HandlerFunc(fn)
}

// routePattern keeps ids out of metric labels.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	p := strings.ReplaceAll(strings.Join(rctx.RoutePatterns, ""), "/*/", "/")
	if p == "" {
		return "unmatched"
	}
	return p
}

// authenticate requires a bearer token with an open session.
func authenticate(a *api, svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			token := strings.TrimPrefix(h, "Bearer ")
			if h == "" || token == h || token == "" {
				a.fail(w, r, errs.New(errs.EUnauthorized, "missing bearer token"))
				return
			}
			c, err := svc.Authenticate(r.Context(), token)
			if err != nil {
				a.fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, c)))
		}
		return http.HandlerFunc(fn)
	}
}

func requireAdmin(a *api) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			c := claimsFrom(r.Context())
			if c == nil || !c.HasRole(store.RoleAdmin) {
				a.fail(w, r, errs.New(errs.EForbidden, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
