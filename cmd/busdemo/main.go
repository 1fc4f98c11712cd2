// Command busdemo wires a bus from a TOML configuration file, registers a
// couple of demonstration queues and exchanges, and serves the admin API
// until terminated — the reference entrypoint for running the bus as a
// standalone process.
//
//	@title			Envelope Admin API
//	@version		1.0
//	@description	Introspection, pause/resume, and diagnostic endpoints for an in-process bus.
//	@BasePath		/esb
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: "Bearer {token}"
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/riverbus/envelope/docs"
	mongobody "github.com/riverbus/envelope/internal/adapters/bodystore/mongo"
	memorysink "github.com/riverbus/envelope/internal/adapters/eventsink/memory"
	natssink "github.com/riverbus/envelope/internal/adapters/eventsink/nats"
	"github.com/riverbus/envelope/internal/adapters/health"
	orchestrationmongo "github.com/riverbus/envelope/internal/adapters/orchestration/mongo"
	"github.com/riverbus/envelope/internal/common/lifecycle"
	"github.com/riverbus/envelope/internal/esb/bus"
	"github.com/riverbus/envelope/internal/esb/exchange"
	"github.com/riverbus/envelope/internal/esb/handler"
	"github.com/riverbus/envelope/internal/esb/message"
	"github.com/riverbus/envelope/internal/esb/orchestration"
	"github.com/riverbus/envelope/internal/esb/queue"
	"github.com/riverbus/envelope/internal/esb/sweep"
	"github.com/riverbus/envelope/internal/esb/warning"
	"github.com/riverbus/envelope/internal/platform/api"
	"github.com/riverbus/envelope/internal/platform/audit"
	"github.com/riverbus/envelope/internal/platform/binding"
	"github.com/riverbus/envelope/internal/platform/exchangedef"
	"github.com/riverbus/envelope/internal/platform/queuedef"

	natsgo "github.com/nats-io/nats.go"
)

func main() {
	configPath := flag.String("config", "bus.toml", "path to the bus TOML configuration")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Logger = logger

	cfg, err := bus.LoadConfiguration(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading bus configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(resolveOrLiteral(cfg.BodyStoreDSN)))
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to mongo")
	}
	db := mongoClient.Database("esb")
	bodyProvider := mongobody.New(db, "message_bodies")

	var redisClient *redis.Client
	if addr := os.Getenv("ESB_REDIS_ADDR"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: addr})
	}

	eventPublisher := buildEventPublisher(cfg, logger)

	b, err := bus.New(cfg, bodyProvider, eventPublisher, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("constructing bus")
	}

	faultQueues := make(map[string]*queue.MessageQueue)

	// Fault queues are registered first so request queues can reference
	// them by name.
	for _, qc := range cfg.Queues {
		if !qc.IsFaultQueue {
			continue
		}
		def := queueDefinitionFromConfig(qc, nil)
		q, err := b.RegisterQueue(def)
		if err != nil {
			logger.Fatal().Err(err).Str("queue", qc.Name).Msg("registering fault queue")
		}
		faultQueues[qc.Name] = q
	}

	orchestrationSink := orchestration.NewSink(orchestrationmongo.New(db))
	orchestrationHandler := orchestration.NewHandler(orchestrationSink)

	for _, qc := range cfg.Queues {
		if qc.IsFaultQueue {
			continue
		}
		var h handler.Handler = demoHandler(qc.Name, logger)
		if qc.IsOrchestration {
			h = orchestrationHandler
		}
		def := queueDefinitionFromConfig(qc, h)
		if _, err := b.RegisterQueue(def); err != nil {
			logger.Fatal().Err(err).Str("queue", qc.Name).Msg("registering queue")
		}
	}

	for _, ec := range cfg.Exchanges {
		b.RegisterExchange(exchangeFromConfig(ec))
	}

	healthRegistry := health.NewRegistry()
	healthRegistry.Register(health.NewBrokerHealthService(true, health.BackendMongo, health.NewMongoChecker(mongoClient)))
	if redisClient != nil {
		healthRegistry.Register(health.NewBrokerHealthService(true, health.BackendRedis, health.NewRedisChecker(redisClient)))
	}

	var sweeper *sweep.Sweeper
	if len(faultQueues) > 0 {
		sweeper = sweep.New(sweep.DefaultConfig(), faultQueues, redisClient, logger, func(counts sweep.FaultCounts) {
			logger.Info().Interface("faultCounts", counts).Msg("fault queue sweep")
		})
		if err := sweeper.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("starting fault queue sweeper")
		}
	}

	lm := lifecycle.NewManager()
	if sweeper != nil {
		lm.RegisterWorkerShutdown("fault-sweeper", func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		})
	}
	lm.RegisterDatabaseShutdown("mongo", func(ctx context.Context) error {
		return mongoClient.Disconnect(ctx)
	})
	if redisClient != nil {
		lm.RegisterDatabaseShutdown("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	router := api.NewRouter(api.Deps{
		Bus:          b,
		Sweeper:      sweeper,
		Health:       healthRegistry,
		Warnings:     warning.NewInMemoryService(),
		QueueDefs:    queuedef.NewRepository(db),
		ExchangeDefs: exchangedef.NewRepository(db),
		Bindings:     binding.NewRepository(db),
		Audit:        audit.NewService(audit.NewRepository(db)),
		JWTSecret:    []byte(os.Getenv("ESB_JWT_SECRET")),
		Credentials:  adminCredentials(logger),
	})
	httpServer := &http.Server{Addr: addrOrDefault(os.Getenv("ESB_ADMIN_ADDR")), Handler: router}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin API server stopped unexpectedly")
		}
	}()
	lm.RegisterHTTPShutdown("admin-api", httpServer.Shutdown)

	logger.Info().Str("bus", cfg.BusName).Int("queues", len(cfg.Queues)).Int("exchanges", len(cfg.Exchanges)).
		Str("adminAddr", httpServer.Addr).Msg("bus running")

	if err := lm.Run(); err != nil {
		logger.Error().Err(err).Msg("shutdown did not complete cleanly")
	}
}

// adminCredentials builds the admin login table from an env-supplied
// username/password, bcrypt-hashing the password before it ever leaves this
// function. Omitted entirely if ESB_ADMIN_PASSWORD isn't set, in which case
// the admin API exposes no /auth/login route.
func adminCredentials(logger zerolog.Logger) []api.Credentials {
	password := os.Getenv("ESB_ADMIN_PASSWORD")
	if password == "" {
		return nil
	}
	username := os.Getenv("ESB_ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Fatal().Err(err).Msg("hashing admin password")
	}
	return []api.Credentials{{Username: username, PasswordHash: string(hash)}}
}

func addrOrDefault(addr string) string {
	if addr == "" {
		return ":8081"
	}
	return addr
}

// resolveOrLiteral treats a SecretRef as a literal; a deployment wiring a
// real secrets backend resolves BodyStoreDSN through bus.ResolveAll before
// this point instead.
func resolveOrLiteral(ref bus.SecretRef) string {
	return string(ref)
}

func buildEventPublisher(cfg bus.Configuration, logger zerolog.Logger) queue.Publisher {
	switch cfg.EventSinkTarget {
	case "nats":
		conn, err := natsgo.Connect(resolveOrLiteral(cfg.NATSUrl))
		if err != nil {
			logger.Fatal().Err(err).Msg("connecting to nats")
		}
		return natssink.New(conn)
	case "memory", "":
		return memorysink.New(256)
	default:
		logger.Fatal().Str("target", cfg.EventSinkTarget).Msg("unknown event_sink_target")
		return nil
	}
}

func queueDefinitionFromConfig(qc bus.QueueConfig, h handler.Handler) queue.Definition {
	def := queue.Definition{
		QueueName:                qc.Name,
		QueueType:                queue.TypeSequentialDelayable,
		IsPull:                   qc.IsPull,
		MaxSize:                  qc.MaxSize,
		DefaultProcessingTimeout: qc.DefaultProcessingTimeout,
		FetchInterval:            qc.FetchInterval,
		IsFaultQueue:             qc.IsFaultQueue,
		FaultQueueName:           qc.FaultQueueName,
		HandleMessage:            h,
	}
	if qc.Type == "fifo" {
		def.QueueType = queue.TypeSequentialFIFO
	}
	if qc.MaxRetries > 0 {
		def.ErrorHandling = &message.ErrorHandling{MaxRetries: qc.MaxRetries, Interval: qc.RetryInterval}
	}
	return def
}

func exchangeFromConfig(ec bus.ExchangeConfig) *exchange.Exchange {
	e := &exchange.Exchange{
		ExchangeName: ec.Name,
		Headers:      ec.Headers,
	}
	switch ec.Type {
	case "fanout":
		e.ExchangeType = exchange.TypeFanOut
	case "headers":
		e.ExchangeType = exchange.TypeHeaders
	default:
		e.ExchangeType = exchange.TypeDirect
	}
	if ec.HeadersMatch == "Any" {
		e.HeadersMatch = exchange.MatchAny
	} else {
		e.HeadersMatch = exchange.MatchAll
	}
	for _, bc := range ec.Bindings {
		e.Bindings = append(e.Bindings, exchange.Binding{QueueName: bc.QueueName, RouteName: bc.RouteName})
	}
	return e
}

// demoHandler logs and completes every message it receives; real deployments
// replace this with handlers registered against the process's own registry.
func demoHandler(queueName string, logger zerolog.Logger) handler.Handler {
	return handler.Func(func(ctx context.Context, msg *message.Message, hctx *handler.Context) handler.Result {
		logger.Info().Str("queue", queueName).Str("messageId", msg.MessageID.String()).Msg("handling message")
		return handler.Completed()
	})
}
