package bootstrap

import (
	"context"
	"time"

	"github.com/krobus00/arbitrage-service/internal/config"
	"github.com/krobus00/arbitrage-service/internal/constant"
	"github.com/krobus00/arbitrage-service/internal/infrastructure"
	"github.com/krobus00/arbitrage-service/internal/service/sink"
	"github.com/krobus00/arbitrage-service/internal/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// StartStreamSetup creates or updates the arbitrage stream and exits.
func StartStreamSetup(cmd *cobra.Command, args []string) {
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	nc, js, err := infrastructure.NewJetstream(config.Env.NatsJetstream, constant.StreamSetupClientName)
	util.ContinueOrFatal(err)
	defer func() {
		if err := infrastructure.CloseJetstream(nc); err != nil {
			logrus.Error(err)
		}
	}()

	started := time.Now()
	err = sink.NewJetstreamForwarder(js, config.Env.NatsJetstream).JetstreamEventInit(ctx)
	util.ContinueOrFatal(err)

	logrus.WithField("took", time.Since(started).String()).Info("stream setup finished")
}
