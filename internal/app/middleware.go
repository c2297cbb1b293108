package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/keystone-id/keystone/internal/platform/httpx"
	"github.com/keystone-id/keystone/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger    *slog.Logger
	Config    *Config
	Responder *httpx.Responder
	// LimitCounter optionally backs the rate limiter with a shared store so
	// the ceiling holds across instances. Nil keeps counters process-local.
	LimitCounter httprate.LimitCounter
}

// MiddlewareStack installs the ordered request pipeline: addressing and
// correlation first, then security headers, CORS, compression, rate limiting
// and logging, with panic recovery rendering the uniform error envelope.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	corsOrigin := "*"
	if cfg.Config != nil && cfg.Config.CORSOrigin != "" {
		corsOrigin = cfg.Config.CORSOrigin
	}
	corsMiddleware := cors.Handler(cors.Options{
		AllowedOrigins:   []string{corsOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: corsOrigin != "*",
		MaxAge:           300,
	})

	timeout := 30 * time.Second
	requests := 100
	window := 15 * time.Minute
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		if cfg.Config.RateLimitRequests > 0 {
			requests = cfg.Config.RateLimitRequests
		}
		if cfg.Config.RateLimitWindow > 0 {
			window = cfg.Config.RateLimitWindow
		}
	}

	rateLimitOpts := []httprate.Option{
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			cfg.Responder.Error(w, r, httpx.RateLimited())
		}),
	}
	if cfg.LimitCounter != nil {
		rateLimitOpts = append(rateLimitOpts, httprate.WithLimitCounter(cfg.LimitCounter))
	}

	return []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		requestLogger(cfg.Logger),
		recoverer(cfg.Responder),
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					cfg.Responder.Error(w, r, err)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		corsMiddleware,
		middleware.Compress(5),
		httprate.Limit(requests, window, rateLimitOpts...),
	}
}

// requestLogger logs once on entry and once on completion. Completions with
// status >= 400 log at Error severity.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r = r.WithContext(shared.ContextWithIdentityRecorder(r.Context()))
			requestID := middleware.GetReqID(r.Context())

			logger.Info("request started",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote", r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			attrs := []any{
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("latency", time.Since(start)),
			}
			if identity, ok := shared.RecordedIdentity(r.Context()); ok {
				attrs = append(attrs, slog.String("user", identity.Email))
			}
			if ww.Status() >= http.StatusBadRequest {
				logger.Error("request completed", attrs...)
			} else {
				logger.Info("request completed", attrs...)
			}
		})
	}
}

// recoverer converts panics into the uniform 500 envelope.
func recoverer(responder *httpx.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					err, ok := rec.(error)
					if !ok {
						err = fmt.Errorf("panic: %v", rec)
					}
					responder.Error(w, r, err)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
