// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"fiscal-assistant/internal/assistant/pipeline"
	"fiscal-assistant/internal/common/aws"
	"fiscal-assistant/internal/common/camunda"
	"fiscal-assistant/internal/common/config"
	"fiscal-assistant/internal/common/database"
	"fiscal-assistant/internal/common/fiscalapi"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/common/observability"
	"fiscal-assistant/internal/store"
	"fiscal-assistant/internal/store/postgres"
	"fiscal-assistant/internal/store/redisstore"
	"fiscal-assistant/internal/store/search"

	pu "fiscal-assistant/internal/workers/assistant/process-utterance"
	ea "fiscal-assistant/internal/workers/fiscal/execute-action"
	va "fiscal-assistant/internal/workers/fiscal/validate-action"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	log.Info("Starting worker manager...", map[string]interface{}{"environment": cfg.App.Environment})

	ctx := context.Background()
	obs := observability.New(cfg.App.Name, cfg.Tracing, log)
	defer obs.Shutdown(context.Background())

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	log.Info("Zeebe client connected successfully", nil)

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	log.Info("PostgreSQL connected successfully", nil)

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("Redis connected successfully", nil)

	// --- Stores ---
	var counterparties store.CounterpartyDirectory = postgres.NewCounterpartyStore(pg.DB, log)
	if esCfg := cfg.Database.Elasticsearch; esCfg.Enabled() {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(esCfg)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		if err := es.EnsureIndex(ctx, esCfg.CounterpartyIndex, database.CounterpartyMapping); err != nil {
			zapLog.Fatal("counterparty index setup failed", zap.Error(err))
		}
		counterparties = search.NewDirectory(counterparties, es.Client, esCfg.CounterpartyIndex, log)
		log.Info("Elasticsearch connected successfully", map[string]interface{}{"index": esCfg.CounterpartyIndex})
	}

	quota := redisstore.NewQuotaCache(postgres.NewQuotaStore(pg.DB), rdb.Client, config.GetDuration(cfg.Database.Redis.QuotaTTL), log)
	sink := fiscalapi.NewClient(cfg.FiscalAPI, nil, nil, log)

	// --- Notifications ---
	var (
		sesSvc aws.SESService
		snsSvc aws.SNSService
	)
	if cfg.Notifications.Email.Enabled {
		client, err := aws.NewSESClient(ctx, cfg.Notifications.Region)
		if err != nil {
			log.Warn("SES unavailable, emission notices disabled", map[string]interface{}{"error": err.Error()})
		} else {
			sesSvc = client
		}
	}
	if cfg.Notifications.Events.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.Notifications.Region)
		if err != nil {
			log.Warn("SNS unavailable, outcome events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			snsSvc = client
		}
	}

	p, err := pipeline.New(ctx, cfg, pipeline.Stores{
		Counterparties:   counterparties,
		Invoices:         postgres.NewInvoiceStore(pg.DB),
		Quota:            quota,
		Registry:         postgres.NewRegistryStore(pg.DB),
		Turns:            postgres.NewTurnStore(pg.DB),
		Pending:          redisstore.NewPending(rdb.Client, config.GetDuration(cfg.Assistant.PendingTTL)),
		Sink:             sink,
		QuotaInvalidator: quota,
		Notifier:         aws.NewNotifier(cfg.Notifications, sesSvc, snsSvc, log),
		Tracer:           obs.Tracer(),
	}, log)
	if err != nil {
		zapLog.Fatal("pipeline setup failed", zap.Error(err))
	}

	// --- Workers ---
	var workers []worker.JobWorker
	register := func(taskType string, handler camunda.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if jw := camunda.StartWorker(zeebe.GetClient(), taskType, wcfg, traced(obs, taskType, handler), log); jw != nil {
			workers = append(workers, jw)
		}
	}

	puHandler := pu.NewHandler(pu.LoadConfig(config.GetWorkerConfig(cfg, pu.TaskType)), p.Orchestrator, p.Executor, log)
	register(pu.TaskType, puHandler.Handle)

	vaHandler := va.NewHandler(va.LoadConfig(config.GetWorkerConfig(cfg, va.TaskType)), p.Validator, log)
	register(va.TaskType, vaHandler.Handle)

	eaHandler := ea.NewHandler(ea.LoadConfig(config.GetWorkerConfig(cfg, ea.TaskType)), p.Executor, log)
	register(ea.TaskType, eaHandler.Handle)

	log.Info("Workers registered", map[string]interface{}{"count": len(workers)})

	// --- Health and metrics ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		failures := map[string]string{}
		if err := pg.Ping(checkCtx); err != nil {
			failures["postgres"] = err.Error()
		}
		if err := rdb.Ping(checkCtx); err != nil {
			failures["redis"] = err.Error()
		}
		if err := zeebe.HealthCheck(checkCtx); err != nil {
			failures["zeebe"] = err.Error()
		}
		if len(failures) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", failures)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.HealthPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping workers...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping health server", map[string]interface{}{"error": err.Error()})
	}
	if err := zeebe.Close(); err != nil {
		log.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Worker manager stopped gracefully", nil)
}

// traced wraps a job handler in a span and records the otel job instruments.
func traced(obs *observability.Observability, taskType string, handler camunda.JobHandler) camunda.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		ctx, span := obs.StartSpan(context.Background(), "job "+taskType,
			attribute.String("job.type", taskType),
			attribute.Int64("job.key", job.Key),
			attribute.Int64("job.process_instance_key", job.ProcessInstanceKey),
		)
		defer span.End()

		handler(client, job)

		obs.RecordJobProcessed(ctx, taskType, "handled")
		obs.RecordJobDuration(ctx, taskType, time.Since(start), "handled")
	}
}

func writeStatus(w http.ResponseWriter, code int, status string, failures map[string]string) {
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if len(failures) > 0 {
		body["failures"] = failures
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
