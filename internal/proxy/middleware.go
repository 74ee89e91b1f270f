package proxy

import (
	"net/http"
	"time"

	"github.com/uptrace/bunrouter"
)

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
	return r.ResponseWriter.Write(b)
}

// instrument records request metrics and an access log line per request.
func (s *Server) instrument(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		m := s.opts.Metrics
		if m != nil {
			m.HTTP.RequestsInFlight.Inc()
			defer m.HTTP.RequestsInFlight.Dec()
		}

		err := next(rec, req)

		route := req.Route()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		if m != nil {
			m.ObserveRequest(route, rec.status, elapsed)
		}
		s.logger.Debug("http request",
			"method", req.Method,
			"route", route,
			"status", rec.status,
			"duration", elapsed,
		)
		return err
	}
}
