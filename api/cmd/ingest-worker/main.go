package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"water-grid-monitoring-system/api/internal/analytics"
	"water-grid-monitoring-system/api/internal/models"
	"water-grid-monitoring-system/api/internal/repos"
	"water-grid-monitoring-system/shared/cachex"
	"water-grid-monitoring-system/shared/config"
	"water-grid-monitoring-system/shared/dbx"
	"water-grid-monitoring-system/shared/events"
	"water-grid-monitoring-system/shared/influxx"
	"water-grid-monitoring-system/shared/lockx"
	"water-grid-monitoring-system/shared/logx"
	"water-grid-monitoring-system/shared/metricsx"
	"water-grid-monitoring-system/shared/mqx"
	"water-grid-monitoring-system/shared/observability"
)

const (
	alertChannel  = "water.alerts"
	sweepInterval = time.Minute
	sweepLockKey  = "locks:anomaly-sweep"

	// Seven days of history feeds the anomaly sweep.
	sweepHistoryWindow = 7 * 24 * time.Hour
)

func main() {
	cfg, problems := config.Load("ingest-worker", 8084)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)
	metricsx.Register()

	if cfg.DatabaseURL == "" {
		problems = append(problems, config.Problem{Field: "DATABASE_URL", Message: "DATABASE_URL is required"})
	}
	if len(cfg.KafkaBrokers) == 0 {
		problems = append(problems, config.Problem{Field: "KAFKA_BROKERS", Message: "KAFKA_BROKERS is required"})
	}
	if cfg.KafkaGroupID == "" {
		problems = append(problems, config.Problem{Field: "KAFKA_CONSUMER_GROUP", Message: "KAFKA_CONSUMER_GROUP is required"})
	}
	if len(problems) > 0 {
		logger.Error(context.Background(), "config_invalid", "invalid config",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.Any("problems", problems),
		)
		os.Exit(1)
	}

	if cfg.OtelEnabled {
		if shutdown, err := observability.InitTracer(context.Background(), observability.TracerConfig{
			ServiceName: cfg.ServiceName,
			Env:         cfg.Env,
			Endpoint:    cfg.OtelEndpoint,
			Insecure:    cfg.OtelInsecure,
			SampleRatio: cfg.OtelSampleRatio,
		}); err == nil {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	dbPool, err := dbx.NewPool(cfg)
	if err != nil {
		logger.Error(context.Background(), "db_init_failed", "db init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer dbPool.Close()

	producer, err := mqx.NewProducer(cfg)
	if err != nil {
		logger.Error(context.Background(), "kafka_init_failed", "kafka producer init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer producer.Close()

	var cacheClient *cachex.Client
	if cfg.RedisAddr != "" {
		cacheClient, err = cachex.New(cfg)
		if err != nil {
			logger.Warn(context.Background(), "redis_init_failed", "redis init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
		}
	}
	if cacheClient != nil {
		defer cacheClient.Close()
	}

	var influxClient *influxx.Client
	if cfg.InfluxURL != "" && cfg.InfluxToken != "" && cfg.InfluxOrg != "" && cfg.InfluxBucket != "" {
		influxClient, err = influxx.New(cfg)
		if err != nil {
			logger.Warn(context.Background(), "influx_init_failed", "influx init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
		}
	}
	if influxClient != nil {
		defer influxClient.Close()
	}

	reader, err := mqx.NewConsumer(cfg, events.TopicTelemetryReadings, cfg.KafkaGroupID+"-telemetry")
	if err != nil {
		logger.Error(context.Background(), "kafka_init_failed", "telemetry reader init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	ingest := &ingester{
		engine:         analytics.New(cfg.PredictJitterPct),
		zones:          repos.NewZonesRepo(dbPool),
		pumps:          repos.NewPumpsRepo(dbPool),
		readings:       repos.NewReadingsRepo(dbPool),
		alerts:         repos.NewAlertsRepo(dbPool),
		producer:       producer,
		cache:          cacheClient,
		influx:         influxClient,
		logger:         logger,
		overrideWindow: time.Duration(cfg.ManualOverrideSec) * time.Second,
		cooldown:       time.Duration(cfg.AnomalyCooldownSec) * time.Second,
		lastAlert:      make(map[string]time.Time),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		runConsumer(ctx, reader, cfg.KafkaGroupID+"-telemetry", ingest.handleReading, logger)
	}()
	go func() {
		defer wg.Done()
		ingest.runSweeper(ctx)
	}()

	wg.Wait()
	logger.Info(context.Background(), "worker_stop", "ingest worker stopped")
}

type ingester struct {
	engine   *analytics.Engine
	zones    *repos.ZonesRepo
	pumps    *repos.PumpsRepo
	readings *repos.ReadingsRepo
	alerts   *repos.AlertsRepo
	producer *mqx.Producer
	cache    *cachex.Client
	influx   *influxx.Client
	logger   logx.Logger

	overrideWindow time.Duration
	cooldown       time.Duration

	mu        sync.Mutex
	lastAlert map[string]time.Time
}

func runConsumer(ctx context.Context, reader *kafka.Reader, groupID string, handler func(context.Context, []byte) error, logger logx.Logger) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error(ctx, "kafka_fetch_failed", "failed to fetch message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		_, span := otel.Tracer("mqx").Start(ctx, "kafka.consume")
		span.SetAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		)
		if err := handler(ctx, msg.Value); err != nil {
			span.End()
			logger.Error(ctx, "event_handle_failed", "failed to handle event",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			continue
		}
		span.End()
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "kafka_commit_failed", "failed to commit message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
		}
		stats := reader.Stats()
		metricsx.SetKafkaLag(stats.Topic, groupID, stats.Lag)
	}
}

type telemetryPayload struct {
	ZoneID      string     `json:"zone_id"`
	FlowRate    float64    `json:"flow_rate"`
	Pressure    float64    `json:"pressure"`
	Consumption *float64   `json:"consumption"`
	RecordedAt  *time.Time `json:"recorded_at"`
}

func (w *ingester) handleReading(ctx context.Context, payload []byte) error {
	var envelope events.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return err
	}
	var reading telemetryPayload
	if err := json.Unmarshal(envelope.Payload, &reading); err != nil {
		metricsx.IncReadingRejected()
		return nil
	}
	zoneID, err := uuid.Parse(reading.ZoneID)
	if err != nil || reading.FlowRate < 0 || reading.Pressure < 0 {
		metricsx.IncReadingRejected()
		return nil
	}
	if reading.Consumption != nil && *reading.Consumption < 0 {
		metricsx.IncReadingRejected()
		return nil
	}

	record := models.SensorReading{
		ZoneID:      zoneID,
		FlowRate:    reading.FlowRate,
		Pressure:    reading.Pressure,
		Consumption: reading.Consumption,
	}
	if reading.RecordedAt != nil {
		record.RecordedAt = reading.RecordedAt.UTC()
	}
	stored, err := w.readings.InsertOne(ctx, record)
	if err != nil {
		return err
	}
	metricsx.IncReadingIngested(zoneID.String())

	if w.influx != nil {
		_ = w.influx.WriteSensorReading(ctx, zoneID.String(), stored.FlowRate, stored.Pressure, stored.Consumption, stored.RecordedAt)
	}

	return w.refreshZoneState(ctx, zoneID)
}

// refreshZoneState recomputes the stored zone status from recent readings.
// Zones touched by an operator inside the override window are left alone.
func (w *ingester) refreshZoneState(ctx context.Context, zoneID uuid.UUID) error {
	zone, err := w.zones.GetByID(ctx, zoneID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	now := time.Now().UTC()
	if w.overrideWindow > 0 && now.Sub(zone.UpdatedAt) < w.overrideWindow {
		return nil
	}
	recent, err := w.readings.RecentByZone(ctx, zoneID, 20)
	if err != nil || len(recent) == 0 {
		return err
	}
	status := w.engine.CalculateZoneStatus(zone, recent, now)
	latest := recent[len(recent)-1]
	return w.zones.SetObservedState(ctx, zoneID, status, latest.FlowRate, latest.Pressure)
}

func (w *ingester) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error(ctx, "anomaly_sweep_failed", "anomaly sweep failed",
					slog.String("error_code", "INTERNAL_ERROR"),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (w *ingester) sweep(ctx context.Context) error {
	// Only one worker instance sweeps at a time.
	if w.cache != nil {
		lock, acquired, err := lockx.Acquire(ctx, w.cache.Client(), sweepLockKey, sweepInterval)
		if err != nil {
			w.logger.Warn(ctx, "sweep_lock_failed", "lock acquire failed", slog.String("error", err.Error()))
		} else if !acquired {
			return nil
		} else {
			defer func() { _ = lockx.Release(ctx, w.cache.Client(), lock) }()
		}
	}

	zones, err := w.zones.List(ctx, 500, 0)
	if err != nil {
		return err
	}
	pumps, err := w.pumps.List(ctx, uuid.Nil, 1000)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	history, err := w.readings.HistorySince(ctx, now.Add(-sweepHistoryWindow))
	if err != nil {
		return err
	}

	for _, detection := range w.engine.DetectAnomalies(zones, history, pumps, now) {
		if !w.shouldRaise(ctx, detection, now) {
			continue
		}
		if err := w.raiseAlert(ctx, detection); err != nil {
			w.logger.Error(ctx, "alert_raise_failed", "failed to raise alert",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("zone_id", detection.ZoneID.String()),
				slog.String("anomaly_type", detection.Type),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// shouldRaise enforces the per zone and type cooldown. The in-memory map is
// the fast path; the alerts table covers restarts.
func (w *ingester) shouldRaise(ctx context.Context, detection models.AnomalyDetection, now time.Time) bool {
	key := detection.ZoneID.String() + ":" + detection.Type

	w.mu.Lock()
	last, seen := w.lastAlert[key]
	w.mu.Unlock()
	if seen && now.Sub(last) < w.cooldown {
		return false
	}

	if !seen {
		latest, err := w.alerts.LatestByZoneAndType(ctx, detection.ZoneID, detection.Type)
		if err == nil && now.Sub(latest.DetectedAt) < w.cooldown {
			w.mu.Lock()
			w.lastAlert[key] = latest.DetectedAt
			w.mu.Unlock()
			return false
		}
	}

	w.mu.Lock()
	w.lastAlert[key] = now
	w.mu.Unlock()
	return true
}

func (w *ingester) raiseAlert(ctx context.Context, detection models.AnomalyDetection) error {
	details, _ := json.Marshal(map[string]any{
		"zone_name":  detection.ZoneName,
		"confidence": detection.Confidence,
	})
	message := detection.Message
	alert, err := w.alerts.Create(ctx, models.Alert{
		ZoneID:     detection.ZoneID,
		Type:       detection.Type,
		Severity:   detection.Severity,
		Message:    &message,
		Confidence: detection.Confidence,
		DetectedAt: detection.DetectedAt,
		Details:    details,
	})
	if err != nil {
		return err
	}
	metricsx.IncAnomalyDetected(detection.Type, detection.Severity)

	alertPayload, _ := json.Marshal(map[string]any{
		"alert_id":    alert.AlertID,
		"zone_id":     alert.ZoneID,
		"type":        alert.Type,
		"severity":    alert.Severity,
		"message":     detection.Message,
		"confidence":  alert.Confidence,
		"detected_at": alert.DetectedAt,
	})
	_ = w.producer.Publish(ctx, events.TopicWaterAlerts, []byte(alert.AlertID.String()), alertPayload, nil)
	if w.cache != nil {
		_ = w.cache.Client().Publish(ctx, alertChannel, string(alertPayload)).Err()
	}

	w.logger.Info(ctx, "water_alert", "anomaly alert raised",
		slog.String("zone_id", alert.ZoneID.String()),
		slog.String("anomaly_type", alert.Type),
		slog.String("severity", alert.Severity),
	)
	return nil
}
