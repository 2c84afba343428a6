package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chartRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "structchart_chart_requests_total",
			Help: "Total number of chart data requests",
		}, []string{"interval", "status"},
	)

	analysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "structchart_analysis_duration_seconds",
			Help:    "Candle loading and analysis duration",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}, []string{"interval"},
	)

	candlesLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "structchart_candles_loaded",
			Help: "Number of candles in the last analysed chart",
		}, []string{"interval"},
	)
)

func init() {
	prometheus.MustRegister(
		chartRequestsTotal,
		analysisDuration,
		candlesLoaded,
	)
}

// ObserveRequest учитывает запрос данных графика с HTTP-статусом ответа
func ObserveRequest(interval string, status int) {
	chartRequestsTotal.WithLabelValues(interval, strconv.Itoa(status)).Inc()
}

// ObserveAnalysis учитывает длительность загрузки и анализа свечей
func ObserveAnalysis(interval string, d time.Duration, candles int) {
	analysisDuration.WithLabelValues(interval).Observe(d.Seconds())
	candlesLoaded.WithLabelValues(interval).Set(float64(candles))
}
