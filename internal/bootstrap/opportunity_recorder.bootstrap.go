package bootstrap

import (
	"context"

	"github.com/krobus00/arbitrage-service/internal/config"
	"github.com/krobus00/arbitrage-service/internal/constant"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/krobus00/arbitrage-service/internal/infrastructure"
	"github.com/krobus00/arbitrage-service/internal/repository"
	"github.com/krobus00/arbitrage-service/internal/service/recorder"
	"github.com/krobus00/arbitrage-service/internal/service/sink"
	"github.com/krobus00/arbitrage-service/internal/util"
	"github.com/spf13/cobra"
)

func StartOpportunityRecorder(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbCfg := config.Env.Database[constant.ArbitrageDatabase]
	db, err := infrastructure.NewPostgresConnection(ctx, dbCfg)
	util.ContinueOrFatal(err)
	infrastructure.StartPostgresHealthCheck(ctx, db, dbCfg.PingInterval)

	nc, js, err := infrastructure.NewJetstream(config.Env.NatsJetstream, constant.OpportunityRecorderClientName)
	util.ContinueOrFatal(err)

	opportunityRepo := repository.NewOpportunityRepository(db)
	opportunityRecorder := recorder.NewRecorder(js, opportunityRepo, config.Env.NatsJetstream)

	publishers := []entity.Publisher{sink.NewJetstreamForwarder(js, config.Env.NatsJetstream)}
	for _, v := range publishers {
		err = v.JetstreamEventInit(ctx)
		util.ContinueOrFatal(err)
	}

	subscribers := []entity.Subscriber{opportunityRecorder}
	for _, v := range subscribers {
		err = v.JetstreamEventSubscribe(ctx)
		util.ContinueOrFatal(err)
	}

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, map[string]operation{
		"opportunity recorder": func(ctx context.Context) error {
			if err := opportunityRecorder.Stop(); err != nil {
				return err
			}
			cancel()
			if err := db.Close(); err != nil {
				return err
			}
			return infrastructure.CloseJetstream(nc)
		},
	})

	<-wait
}
