package metricsx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	kafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag by topic.",
		},
		[]string{"topic", "group"},
	)
	influxWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "influx_write_failures_total",
			Help: "Total InfluxDB write failures.",
		},
	)
	readingsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_readings_ingested_total",
			Help: "Sensor readings persisted, by zone.",
		},
		[]string{"zone"},
	)
	readingsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sensor_readings_rejected_total",
			Help: "Sensor readings rejected at validation.",
		},
	)
	anomaliesDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Anomaly detections by type and severity.",
		},
		[]string{"type", "severity"},
	)
	chainVerifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "report_chain_verify_failures_total",
			Help: "Report chain verification runs that found an invalid block.",
		},
	)
	chainLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "report_chain_length",
			Help: "Number of blocks in the citizen report chain.",
		},
	)
	scheduleLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schedule_generation_latency_seconds",
			Help:    "Pump schedule generation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	asynqQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asynq_queue_depth",
			Help: "Asynq queue depth by queue.",
		},
		[]string{"queue"},
	)
)

func Register() {
	prometheus.MustRegister(httpRequests, httpLatency, kafkaConsumerLag, influxWriteFailures, readingsIngested, readingsRejected, anomaliesDetected, chainVerifyFailures, chainLength, scheduleLatency, asynqQueueDepth)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		status := strconv.Itoa(lrw.statusCode)
		httpRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpLatency.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

func SetKafkaLag(topic string, group string, lag int64) {
	kafkaConsumerLag.WithLabelValues(topic, group).Set(float64(lag))
}

func IncInfluxWriteFailure() {
	influxWriteFailures.Inc()
}

func IncReadingIngested(zone string) {
	readingsIngested.WithLabelValues(zone).Inc()
}

func IncReadingRejected() {
	readingsRejected.Inc()
}

func IncAnomalyDetected(anomalyType string, severity string) {
	anomaliesDetected.WithLabelValues(anomalyType, severity).Inc()
}

func IncChainVerifyFailure() {
	chainVerifyFailures.Inc()
}

func SetChainLength(n int64) {
	chainLength.Set(float64(n))
}

func ObserveScheduleLatency(d time.Duration) {
	scheduleLatency.Observe(d.Seconds())
}

func SetAsynqQueueDepth(queue string, depth int) {
	asynqQueueDepth.WithLabelValues(queue).Set(float64(depth))
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
