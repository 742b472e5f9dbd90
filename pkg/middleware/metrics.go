package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// httpRequestsTotal はサービス・メソッド・パス・ステータスコード別のリクエスト数。
var httpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bookfeed_http_requests_total",
		Help: "HTTPリクエストの総数",
	},
	[]string{"service", "method", "path", "status"},
)

// httpRequestDuration はHTTPリクエストの処理時間（秒）。
var httpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bookfeed_http_request_duration_seconds",
		Help:    "HTTPリクエストの処理時間",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"service", "method", "path"},
)

// Metrics はリクエスト数と処理時間を記録するGinミドルウェアを返す。
// serviceにはメトリクスのラベルとして使用するサービス名を指定する。
func Metrics(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// ルートに一致しないリクエストはパス爆発を避けるためまとめて記録する
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(
			service, c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpRequestDuration.WithLabelValues(
			service, c.Request.Method, path,
		).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler はPrometheusのメトリクス公開エンドポイント用ハンドラを返す。
// 各サービスの GET /metrics に登録する。
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
