package httpx

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	HeaderRequestID      = "X-Request-ID"
	HeaderAccountID      = "X-Account-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("rid", rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		rid, _ := c.Get("rid")
		log.Printf("[http] rid=%v %s %s status=%d dur=%s",
			rid, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Metrics records request latency by route template, so /orders/:id is one
// series regardless of the id.
func Metrics(reg prometheus.Registerer) gin.HandlerFunc {
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "medistore",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	reg.MustRegister(latency)

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		latency.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// RequireAccount rejects requests without a valid X-Account-ID header. The
// header is set by the upstream session layer.
func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderAccountID)
		if id == "" {
			Error(c, http.StatusUnauthorized, "missing "+HeaderAccountID+" header")
			return
		}
		u, err := uuid.Parse(id)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid "+HeaderAccountID+" header")
			return
		}
		// Stored ids are compared as lowercase text.
		c.Set("account", u.String())
		c.Next()
	}
}

func RID(c *gin.Context) string {
	return c.GetString("rid")
}

func AccountID(c *gin.Context) string {
	return c.GetString("account")
}

// Error aborts the request with a JSON {"error": msg} body.
func Error(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
