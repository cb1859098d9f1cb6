// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ResultSuccess は成功した操作のresultラベル値。
// 失敗時はエラー分類を小文字にした値（例: "invalid_credential"）を使う。
const ResultSuccess = "success"

// Recorder はメトリクス記録のインターフェース。
// 認証サービスやミドルウェアから利用する。
type Recorder interface {
	RecordRegistration(role, result string)
	RecordLogin(role, result string)
	RecordGateRejection(reason string)
	RecordMailFailure(provider string)
	ObservePasswordHash(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	gateRejections *prometheus.CounterVec
	mailFailures   *prometheus.CounterVec
	hashLatency    prometheus.Histogram
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panchsetu_registrations_total",
			Help: "ロール・結果別のアカウント登録数",
		}, []string{"role", "result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panchsetu_logins_total",
			Help: "ロール・結果別のログイン試行数",
		}, []string{"role", "result"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panchsetu_auth_gate_rejections_total",
			Help: "認証ゲートで拒否されたリクエスト数",
		}, []string{"reason"}),
		mailFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panchsetu_mail_failures_total",
			Help: "送信に失敗したメール数",
		}, []string{"provider"}),
		hashLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "panchsetu_password_hash_seconds",
			Help: "パスワードのハッシュ化・照合にかかった時間（秒）",
			// bcrypt cost 10 はおおむね50〜100ms
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panchsetu_http_responses_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.gateRejections,
		c.mailFailures,
		c.hashLatency,
		c.httpStatus,
	)

	return c
}

// RecordRegistration は登録結果を記録する。
func (c *Collector) RecordRegistration(role, result string) {
	c.registrations.WithLabelValues(role, result).Inc()
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(role, result string) {
	c.logins.WithLabelValues(role, result).Inc()
}

// RecordGateRejection は認証ゲートでの拒否を記録する。
func (c *Collector) RecordGateRejection(reason string) {
	c.gateRejections.WithLabelValues(reason).Inc()
}

// RecordMailFailure はメール送信失敗を記録する。
func (c *Collector) RecordMailFailure(provider string) {
	c.mailFailures.WithLabelValues(provider).Inc()
}

// ObservePasswordHash はハッシュ処理の所要時間を記録する。
func (c *Collector) ObservePasswordHash(duration time.Duration) {
	c.hashLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないRecorder。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordRegistration(string, string) {}
func (Nop) RecordLogin(string, string)        {}
func (Nop) RecordGateRejection(string)        {}
func (Nop) RecordMailFailure(string)          {}
func (Nop) ObservePasswordHash(time.Duration) {}
func (Nop) RecordHTTPStatus(int)              {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface checks
var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
