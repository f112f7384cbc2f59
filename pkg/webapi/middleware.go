package webapi

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/cors"

	"planrelay/pkg/config"
	"planrelay/pkg/logx"
)

// HeaderRequestID carries the request ID on requests and responses.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLen = 128

// withRequestID reuses an inbound X-Request-ID or assigns a new uuid, echoes it on the
// response, and stores it in the request context for logx.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(logx.WithRequestID(r.Context(), id)))
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b) //nolint:wrapcheck // pass-through
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// httpMetrics counts requests by matched route pattern and status code.
type httpMetrics struct {
	requests *prometheus.CounterVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	return &httpMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "planrelay_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// wrap must sit inside withRequestID and outside the mux: ServeMux records the matched
// pattern on the request it receives, which is the one passed down from here.
func (m *httpMetrics) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
			if r.Method == http.MethodOptions {
				route = "preflight"
			}
		}
		m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

// originGuard rejects requests whose Origin is not allow-listed. Requests without an
// Origin header (curl, server-to-server, same-origin navigation) always pass.
func originGuard(origins config.Origins, logger *logx.Logger, next http.Handler) http.Handler {
	if origins.IsAny() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && !origins.Allows(origin) {
			logger.Warn("[%s] rejected request from origin %q", logx.RequestID(r.Context()), origin)
			writeMessage(w, http.StatusForbidden, msgOriginRejected)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// newCORS builds the CORS header handler. "any" answers with a wildcard, a list echoes
// the matching origin.
func newCORS(origins config.Origins) *cors.Cors {
	allowed := []string{"*"}
	if !origins.IsAny() {
		allowed = origins.List()
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Accept", "Origin", "X-Requested-With", HeaderRequestID},
		ExposedHeaders: []string{HeaderRequestID},
		MaxAge:         600,
	})
}
