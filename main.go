package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"garden-cloud/internal/auth"
	"garden-cloud/internal/eventing"
	mdapp "garden-cloud/internal/masterdata/application"
	mdpostgres "garden-cloud/internal/masterdata/infrastructure/postgres"
	mdhttp "garden-cloud/internal/masterdata/interfaces/http"
	"garden-cloud/internal/observability/metrics"
	telemetryapp "garden-cloud/internal/telemetry/application"
	telemetrypostgres "garden-cloud/internal/telemetry/infrastructure/postgres"
	telemetryredis "garden-cloud/internal/telemetry/infrastructure/redis"
	telemetryhttp "garden-cloud/internal/telemetry/interfaces/http"
	telemetrymqtt "garden-cloud/internal/telemetry/interfaces/mqtt"

	paho "github.com/eclipse/paho.mqtt.golang"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	machineRepo := mdpostgres.NewMachineRepository(db)
	channelRepo := mdpostgres.NewChannelRepository(db)
	configRepo := mdpostgres.NewConfigurationRepository(db)
	candidateRepo := mdpostgres.NewCandidateRepository(db)
	bucketRepo := telemetrypostgres.NewBucketRepository(db)
	bucketQuery := telemetrypostgres.NewBucketQuery(db)

	resolver, err := mdapp.NewChannelResolver(configRepo, channelRepo, logger)
	if err != nil {
		logger.Fatalf("channel resolver error: %v", err)
	}
	tracker, err := mdapp.NewCandidateTracker(candidateRepo, logger)
	if err != nil {
		logger.Fatalf("candidate tracker error: %v", err)
	}

	bus := eventing.NewBus()
	if cfg.RedisAddr != "" {
		cache, err := telemetryredis.NewLiveCache(context.Background(), cfg.RedisAddr, logger)
		if err != nil {
			logger.Fatalf("redis live cache error: %v", err)
		}
		defer cache.Close()
		eventing.On(bus, cache.OnReadingStored)
		logger.Printf("live cache enabled on %s", cfg.RedisAddr)
	}

	ingestService, err := telemetryapp.NewIngestService(machineRepo, channelRepo, resolver, tracker, bucketRepo, bus, logger)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}
	queryService, err := telemetryapp.NewQueryService(bucketQuery, logger)
	if err != nil {
		logger.Fatalf("query service error: %v", err)
	}
	registrationService, err := mdapp.NewRegistrationService(machineRepo, channelRepo, configRepo, candidateRepo, logger)
	if err != nil {
		logger.Fatalf("registration service error: %v", err)
	}

	ingestHandler, err := telemetryhttp.NewIngestHandler(ingestService)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	dataHandler, err := telemetryhttp.NewDataHandler(queryService)
	if err != nil {
		logger.Fatalf("data handler error: %v", err)
	}
	exportHandler, err := telemetryhttp.NewExportHandler(queryService)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}
	registrationHandler, err := mdhttp.NewRegistrationHandler(registrationService)
	if err != nil {
		logger.Fatalf("registration handler error: %v", err)
	}

	if cfg.MQTTBroker != "" {
		opts := paho.NewClientOptions().AddBroker(cfg.MQTTBroker).SetClientID(cfg.MQTTClientID)
		consumer, err := telemetrymqtt.NewConsumer(paho.NewClient(opts), ingestService, logger)
		if err != nil {
			logger.Fatalf("mqtt consumer error: %v", err)
		}
		if err := consumer.Start(context.Background()); err != nil {
			logger.Fatalf("mqtt start error: %v", err)
		}
		defer consumer.Stop()
	}

	policy := auth.DefaultPolicy()
	if cfg.PolicyFile != "" {
		policy, err = auth.LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			logger.Fatalf("auth policy error: %v", err)
		}
	}
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/ingest/", ingestHandler)
	mux.Handle("/api/data/", dataHandler)
	mux.Handle("/api/exports/", exportHandler)
	mux.Handle("/api/machines/register", registrationHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL  string
	HTTPAddr     string
	JWTSecret    string
	PolicyFile   string
	MQTTBroker   string
	MQTTClientID string
	RedisAddr    string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:  getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:     getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:    getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		PolicyFile:   getenvDefault("AUTH_POLICY_FILE", ""),
		MQTTBroker:   getenvDefault("MQTT_BROKER", ""),
		MQTTClientID: getenvDefault("MQTT_CLIENT_ID", "garden-cloud"),
		RedisAddr:    getenvDefault("REDIS_ADDR", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
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
