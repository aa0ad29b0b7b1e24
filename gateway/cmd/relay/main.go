// The relay mirrors selected topics from a district SCADA cluster into the
// central utility cluster so analytics never read from district brokers
// directly.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"water-grid-monitoring-system/shared/config"
	"water-grid-monitoring-system/shared/httpx"
	"water-grid-monitoring-system/shared/logx"
	"water-grid-monitoring-system/shared/metricsx"
	"water-grid-monitoring-system/shared/observability"
)

type statusResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Env     string `json:"env,omitempty"`
	Version string `json:"version,omitempty"`
}

func main() {
	cfg, readyProblems := config.Load("relay", 8091)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)
	metricsx.Register()

	var shutdownTracer func(context.Context) error
	if cfg.OtelEnabled {
		var err error
		shutdownTracer, err = observability.InitTracer(context.Background(), observability.TracerConfig{
			ServiceName: cfg.ServiceName,
			Env:         cfg.Env,
			Endpoint:    cfg.OtelEndpoint,
			Insecure:    cfg.OtelInsecure,
			SampleRatio: cfg.OtelSampleRatio,
		})
		if err != nil {
			logger.Error(context.Background(), "otel_init_failed", "otel init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(cfg.RelaySourceBrokers) == 0 {
		readyProblems = append(readyProblems, config.Problem{Field: "RELAY_SOURCE_BROKERS", Message: "RELAY_SOURCE_BROKERS is required"})
	}
	if len(cfg.RelayTargetBrokers) == 0 {
		readyProblems = append(readyProblems, config.Problem{Field: "RELAY_TARGET_BROKERS", Message: "RELAY_TARGET_BROKERS is required"})
	}
	if len(cfg.RelayTopics) == 0 {
		readyProblems = append(readyProblems, config.Problem{Field: "RELAY_TOPICS", Message: "RELAY_TOPICS is required"})
	}
	if strings.TrimSpace(cfg.RelayGroupID) == "" {
		readyProblems = append(readyProblems, config.Problem{Field: "RELAY_GROUP_ID", Message: "RELAY_GROUP_ID is required"})
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.RelayTargetBrokers,
		BatchTimeout: 2 * time.Second,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: int(kafka.RequireAll),
		Async:        false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, topic := range cfg.RelayTopics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		wg.Add(1)
		go func(t string) {
			defer wg.Done()
			runRelayConsumer(ctx, logger, cfg, t, writer)
		}(topic)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, statusResponse{
			Status:  "ok",
			Service: cfg.ServiceName,
			Env:     cfg.Env,
			Version: version,
		})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if len(readyProblems) > 0 {
			httpx.WriteError(
				w,
				r,
				http.StatusServiceUnavailable,
				"FAILED_PRECONDITION",
				"service not ready: invalid configuration",
				map[string]any{"problems": readyProblems},
			)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, statusResponse{
			Status:  "ready",
			Service: cfg.ServiceName,
			Env:     cfg.Env,
			Version: version,
		})
	})
	mux.Handle("GET /metrics", metricsx.Handler())

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	handler := httpx.WrapServeMux(mux, notFound)
	handler = httpx.WithTimeout(cfg.RequestTimeout, handler)
	handler = httpx.WithRequestID(handler)
	handler = httpx.WithRecover(logger, handler)
	handler = metricsx.Instrument(handler)
	handler = httpx.WithRequestLog(logger, httpx.RequestLogOptions{SkipPaths: map[string]bool{"/healthz": true, "/metrics": true}}, handler)
	handler = otelhttp.NewHandler(handler, "http")

	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.HTTPPort)),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "service_start", "starting service",
			slog.String("addr", server.Addr),
			slog.Int("http_port", cfg.HTTPPort),
			slog.String("log_level", cfg.LogLevel),
			slog.Int("request_timeout_ms", cfg.RequestTimeoutMS),
			slog.Int("topics", len(cfg.RelayTopics)),
		)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info(context.Background(), "shutdown_signal", "received signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "server_failed", "server failed",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	cancel()
	wg.Wait()
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error(context.Background(), "shutdown_failed", "shutdown failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
	}
	if err := writer.Close(); err != nil {
		logger.Error(context.Background(), "relay_writer_close_failed", "relay writer close failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
	}
	if shutdownTracer != nil {
		_ = shutdownTracer(context.Background())
	}
	logger.Info(context.Background(), "service_stop", "service stopped")
}

func runRelayConsumer(ctx context.Context, logger logx.Logger, cfg config.Config, topic string, writer *kafka.Writer) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.RelaySourceBrokers,
		GroupID:  cfg.RelayGroupID,
		Topic:    topic,
		MinBytes: 1e3,
		MaxBytes: cfg.RelayMaxBytes,
	})
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error(ctx, "relay_consume_failed", "failed to consume message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
				slog.String("topic", topic),
			)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		out := kafka.Message{
			Topic:   topic,
			Key:     msg.Key,
			Value:   msg.Value,
			Headers: msg.Headers,
		}
		out.Headers = append(out.Headers, kafka.Header{Key: "relay_timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))})
		if err := writer.WriteMessages(ctx, out); err != nil {
			logger.Error(ctx, "relay_publish_failed", "failed to publish message",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
				slog.String("topic", topic),
			)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "relay_commit_failed", "failed to commit message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
				slog.String("topic", topic),
			)
		}
	}
}
