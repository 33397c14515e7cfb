package bootstrap

import (
	"context"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/krobus00/arbitrage-service/internal/config"
	"github.com/krobus00/arbitrage-service/internal/constant"
	"github.com/krobus00/arbitrage-service/internal/entity"
	controlHandler "github.com/krobus00/arbitrage-service/internal/handler/control/http"
	"github.com/krobus00/arbitrage-service/internal/infrastructure"
	"github.com/krobus00/arbitrage-service/internal/instrumentation"
	"github.com/krobus00/arbitrage-service/internal/repository"
	"github.com/krobus00/arbitrage-service/internal/service/arbitrage"
	"github.com/krobus00/arbitrage-service/internal/service/connector"
	"github.com/krobus00/arbitrage-service/internal/service/dispatcher"
	"github.com/krobus00/arbitrage-service/internal/service/sink"
	"github.com/krobus00/arbitrage-service/internal/service/tickercache"
	"github.com/krobus00/arbitrage-service/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func StartMarketDataGateway(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := dispatcher.New(config.Env.Arbitrage.EventBuffer)
	cache := tickercache.New()

	var sinkWG sync.WaitGroup
	runSink := func(name string, handler dispatcher.HandlerFunc, kinds ...entity.EventKind) {
		ch := events.Subscribe(name, kinds...)
		sinkWG.Add(1)
		go func() {
			defer sinkWG.Done()
			dispatcher.Consume(ctx, name, ch, handler)
		}()
		logrus.WithField("subscriber", name).Info("event sink started")
	}

	runSink("metrics", func(_ context.Context, event entity.Event) {
		instrumentation.Observe(event)
	})

	var (
		nc          *nats.Conn
		redisClient *redis.Client
		db          *sqlx.DB
		// left nil when no journal database is configured
		opportunityFinder controlHandler.OpportunityFinder
	)

	if strings.TrimSpace(config.Env.NatsJetstream.URL) != "" {
		var js nats.JetStreamContext
		var err error
		nc, js, err = infrastructure.NewJetstream(config.Env.NatsJetstream, constant.MarketDataGatewayClientName)
		util.ContinueOrFatal(err)

		forwarder := sink.NewJetstreamForwarder(js, config.Env.NatsJetstream)
		publishers := []entity.Publisher{forwarder}
		for _, publisher := range publishers {
			util.ContinueOrFatal(publisher.JetstreamEventInit(ctx))
		}

		runSink("jetstream", forwarder.Handle)
	}

	if redisCfg, ok := config.Env.Redis[constant.ArbitrageCache]; ok && strings.TrimSpace(redisCfg.CacheDSN) != "" {
		var err error
		redisClient, err = infrastructure.NewRedisClient(ctx, redisCfg)
		util.ContinueOrFatal(err)

		mirror := sink.NewRedisMirror(redisClient, redisCfg.KeyPrefix, redisCfg.OpportunityCap)
		runSink("redis", mirror.Handle, entity.EventTicker, entity.EventStatus, entity.EventOpportunity)
	}

	if dbCfg, ok := config.Env.Database[constant.ArbitrageDatabase]; ok && strings.TrimSpace(dbCfg.DSN) != "" {
		var err error
		db, err = infrastructure.NewPostgresConnection(ctx, dbCfg)
		util.ContinueOrFatal(err)
		infrastructure.StartPostgresHealthCheck(ctx, db, dbCfg.PingInterval)

		opportunityFinder = repository.NewOpportunityRepository(db)
	}

	manager := connector.NewManagerFromConfig(config.Env.Exchanges, config.Env.Arbitrage.EnabledPairs, cache, events, connector.Options{})
	if len(manager.Names()) == 0 {
		logrus.Warn("no exchange connector is enabled")
	}

	engine, err := arbitrage.NewEngine(cache, events, buildExchangeIdentities(config.Env.Exchanges), buildSettings(config.Env.Arbitrage, manager.List()))
	util.ContinueOrFatal(err)

	engineCtx, stopEngine := context.WithCancel(ctx)
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engine.Run(engineCtx)
	}()

	go manager.ConnectAll(ctx)

	router := mux.NewRouter()
	controlHandler.NewControlHTTPHandler(manager, engine, cache, opportunityFinder, config.Env.APIKeys).Register(router)

	httpServer := infrastructure.NewHTTPServer(config.Env.Port["http"], router)
	go func() {
		if err := httpServer.Start(); err != nil {
			logrus.Errorf("http server stopped: %v", err)
		}
	}()

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, map[string]operation{
		"http server": func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
		"market data pipeline": func(ctx context.Context) error {
			stopEngine()
			<-engineDone
			manager.DisconnectAll()

			// sinks drain what is already buffered before the backends close
			events.Close()
			sinkWG.Wait()
			cancel()

			if redisClient != nil {
				if err := redisClient.Close(); err != nil {
					logrus.Errorf("failed to close redis client: %v", err)
				}
			}
			if db != nil {
				if err := db.Close(); err != nil {
					logrus.Errorf("failed to close database: %v", err)
				}
			}
			return infrastructure.CloseJetstream(nc)
		},
	})

	<-wait
}
