package kit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	labelService = "service"
	labelMethod  = "method"
	labelPath    = "path"
	labelStatus  = "status"
)

type Metrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{labelService, labelMethod, labelPath, labelStatus},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{labelService, labelMethod, labelPath},
		),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}

	reg.MustRegister(m.Requests, m.Latency, m.InFlight)
	return m
}

// Middleware records one sample per request. The path label is resolved after the
// handler ran, when chi has filled in the route pattern. A panic passing through
// is counted as a 500 and re-raised.
func (m *Metrics) Middleware(service string, pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			m.InFlight.Inc()
			start := time.Now()
			defer func() {
				m.InFlight.Dec()

				rec := recover()
				status := responseStatus(ww, rec)

				path := pathLabel(r)
				m.Latency.WithLabelValues(service, r.Method, path).
					Observe(time.Since(start).Seconds())

				m.Requests.WithLabelValues(service, r.Method, path, strconv.Itoa(status)).
					Inc()

				if rec != nil {
					panic(rec)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// responseStatus is the status a client saw, or will see once an outer
// recoverer handles rec.
func responseStatus(ww middleware.WrapResponseWriter, rec any) int {
	switch {
	case rec != nil && ww.Status() == 0:
		return http.StatusInternalServerError
	case ww.Status() == 0:
		return http.StatusOK
	}
	return ww.Status()
}
