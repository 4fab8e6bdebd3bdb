package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	monitorapp "reachstacker-monitor/internal/monitor/application"
	monitorhttp "reachstacker-monitor/internal/monitor/interfaces/http"
	"reachstacker-monitor/internal/monitor/notify"
	"reachstacker-monitor/internal/observability/metrics"
	"reachstacker-monitor/internal/storeclient"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := monitorapp.LoadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	metrics.Init(logger)

	client, err := storeclient.NewClient(cfg.StoreURL, storeclient.WithTimeout(cfg.FetchTimeout))
	if err != nil {
		logger.Fatalf("store client error: %v", err)
	}

	registry := monitorapp.NewRegistry(cfg.Units)
	broker := monitorhttp.NewSSEBroker(monitorhttp.WithRequireSubscriber(cfg.Notifications.RequireSubscriber))

	var webhookSink notify.Sink
	if cfg.Notifications.WebhookURL != "" {
		tpl, err := notify.NewTemplate(cfg.Notifications.WebhookTemplate)
		if err != nil {
			logger.Fatalf("webhook template error: %v", err)
		}
		sink, err := notify.NewWebhookSink(cfg.Notifications.WebhookURL, tpl, logger)
		if err != nil {
			logger.Fatalf("webhook sink error: %v", err)
		}
		webhookSink = sink
	}

	var kafkaSink notify.Sink
	if len(cfg.Notifications.Kafka.Brokers) > 0 {
		writer, err := notify.NewKafkaWriter(cfg.Notifications.Kafka.Brokers, cfg.Notifications.Kafka.Topic)
		if err != nil {
			logger.Fatalf("kafka writer error: %v", err)
		}
		sink, err := notify.NewKafkaSink(writer, logger)
		if err != nil {
			logger.Fatalf("kafka sink error: %v", err)
		}
		defer sink.Close()
		kafkaSink = sink
		logger.Printf("kafka notifications enabled topic=%s", cfg.Notifications.Kafka.Topic)
	}

	sinks := notify.NewMultiSink(broker, webhookSink, kafkaSink)
	dispatcher, err := monitorapp.NewDispatcher(registry, monitorapp.NewPreference(broker),
		monitorapp.WithThresholds(cfg.Thresholds),
		monitorapp.WithLivenessThresholds(cfg.Liveness),
		monitorapp.WithDangerAlertMode(cfg.Alerts.DangerMode),
		monitorapp.WithAlertAllUnits(cfg.Alerts.AllUnits),
		monitorapp.WithHistoryLimit(cfg.Chart.MaxPoints),
		monitorapp.WithNotifier(sinks),
		monitorapp.WithAudioCue(broker),
		monitorapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("dispatcher error: %v", err)
	}

	session, err := monitorapp.NewSession(client, dispatcher, registry, cfg.DefaultUnit, logger,
		monitorapp.WithInterval(cfg.RefreshInterval),
		monitorapp.WithFetchTimeout(cfg.FetchTimeout),
	)
	if err != nil {
		logger.Fatalf("session error: %v", err)
	}

	tone := notify.Tone{
		FrequencyHz: cfg.Tone.FrequencyHz,
		Duration:    cfg.Tone.Duration,
		Gain:        cfg.Tone.Gain,
		FloorGain:   cfg.Tone.FloorGain,
		SampleRate:  cfg.Tone.SampleRate,
	}
	apiHandler, err := monitorhttp.NewHandler(session, client, tone, logger)
	if err != nil {
		logger.Fatalf("dashboard handler error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		session.Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.Handle("/api/v1/notifications/stream", monitorhttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/", apiHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     loggingMiddleware(mux, logger),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("http listening on %s store=%s units=%v", cfg.HTTPAddr, cfg.StoreURL, cfg.Units)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server error: %v", err)
	}
	<-sessionDone
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the notification stream working behind the access log.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
