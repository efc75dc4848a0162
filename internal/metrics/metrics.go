package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qa_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "path"},
	)

	votesCast = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_votes_cast_total",
			Help: "Votes processed by the ledger, by target kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	answersAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qa_answers_accepted_total",
			Help: "Answers marked as accepted",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, votesCast, answersAccepted)
}

// Vote outcomes.
const (
	OutcomeCreated = "created"
	OutcomeToggled = "toggled"
	OutcomeFlipped = "flipped"
	OutcomeRevoked = "revoked"
)

func VoteCast(kind, outcome string) {
	votesCast.WithLabelValues(kind, outcome).Inc()
}

func AnswerAccepted() {
	answersAccepted.Inc()
}

func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
