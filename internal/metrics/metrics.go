// Package metrics は Prometheus メトリクスの定義と公開用ハンドラーを提供します。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証処理の結果ラベル
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Metrics はアプリケーション固有のメトリクスをまとめた構造体です。
type Metrics struct {
	registry *prometheus.Registry

	AuthOperations *prometheus.CounterVec
	MailDeliveries *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
}

// New は専用レジストリを作成し、メトリクスを登録します。
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_auth_operations_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		MailDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_mail_deliveries_total",
				Help: "Total number of mail deliveries by kind and result",
			},
			[]string{"kind", "result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
	}

	registry.MustRegister(m.AuthOperations, m.MailDeliveries, m.HTTPRequests)
	return m
}

// ObserveAuth は認証処理の結果を記録します。nil レシーバーでも安全に呼べます。
func (m *Metrics) ObserveAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveMail はメール送信の結果を記録します。
func (m *Metrics) ObserveMail(kind, result string) {
	if m == nil {
		return
	}
	m.MailDeliveries.WithLabelValues(kind, result).Inc()
}

// Middleware はリクエスト数を数える gin ミドルウェアです。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler は /metrics 用の HTTP ハンドラーを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
