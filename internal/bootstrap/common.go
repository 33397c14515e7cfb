package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/krobus00/arbitrage-service/internal/config"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type operation func(ctx context.Context) error

// gracefulShutdown waits for termination syscalls and doing clean up operations after received it.
func gracefulShutdown(ctx context.Context, timeout time.Duration, ops map[string]operation) <-chan struct{} {
	wait := make(chan struct{})
	go func() {
		s := make(chan os.Signal, 1)

		// add any other syscalls that you want to be notified with
		signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		<-s

		logrus.Info("shutting down")

		// set timeout for the ops to be done to prevent system hang
		timeoutFunc := time.AfterFunc(timeout, func() {
			logrus.Error(fmt.Sprintf("timeout %d ms has been elapsed, force exit", timeout.Milliseconds()))
			os.Exit(0)
		})

		defer timeoutFunc.Stop()

		var wg sync.WaitGroup

		// Do the operations asynchronously to save time
		for key, op := range ops {
			wg.Add(1)
			go func() {
				defer wg.Done()

				logrus.Info(fmt.Sprintf("cleaning up: %s", key))
				if err := op(ctx); err != nil {
					logrus.Error(fmt.Sprintf("%s: clean up failed: %s", key, err.Error()))
					return
				}

				logrus.Info(fmt.Sprintf("%s was shutdown gracefully", key))
			}()
		}

		wg.Wait()

		close(wait)
	}()

	return wait
}

// buildExchangeIdentities starts from the built-in fee table and applies non-zero fee
// overrides from config.
func buildExchangeIdentities(exchanges map[string]config.ExchangeConfig) entity.ExchangeIdentities {
	identities := entity.DefaultExchangeIdentities()
	for raw, cfg := range exchanges {
		name, ok := entity.ParseExchangeName(raw)
		if !ok {
			continue
		}

		identity := identities[name]
		if cfg.MakerFee > 0 {
			identity.MakerFee = decimal.NewFromFloat(cfg.MakerFee)
		}
		if cfg.TakerFee > 0 {
			identity.TakerFee = decimal.NewFromFloat(cfg.TakerFee)
		}
		identities[name] = identity
	}

	return identities
}

// buildSettings maps the arbitrage config section to engine settings. Empty exchange or pair
// lists fall back to whatever the started connectors cover.
func buildSettings(cfg config.ArbitrageConfig, connectors []entity.ConnectorInfo) entity.Settings {
	exchanges := make([]entity.ExchangeName, 0, len(cfg.EnabledExchanges))
	for _, raw := range cfg.EnabledExchanges {
		exchanges = append(exchanges, entity.ExchangeName(raw))
	}

	pairs := slices.Clone(cfg.EnabledPairs)

	if len(exchanges) == 0 || len(pairs) == 0 {
		fallbackPairs := len(pairs) == 0
		fallbackExchanges := len(exchanges) == 0
		for _, info := range connectors {
			if fallbackExchanges {
				exchanges = append(exchanges, info.Exchange)
			}
			if fallbackPairs {
				pairs = append(pairs, info.Subscriptions...)
			}
		}
	}

	return entity.Settings{
		MinProfitPercent: cfg.MinProfitPercent,
		EnabledExchanges: exchanges,
		EnabledPairs:     pairs,
		TradeAmount:      cfg.TradeAmount,
	}
}
