package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/namechain/registry/bridge"
	"github.com/namechain/registry/common"
	"github.com/namechain/registry/datastore"
	"github.com/namechain/registry/interfaces"
	"github.com/namechain/registry/metrics"
	"github.com/namechain/registry/registry"
	"github.com/namechain/registry/roles"
	"github.com/namechain/registry/storage"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringSliceFlag{
		Name:  "journal",
		Value: cli.NewStringSlice("file:///var/lib/namechain/journal"),
		Usage: "journal backend URIs (file://, s3://, ipfs://, vault://), repeatable for redundancy",
	},
	&cli.StringFlag{
		Name:  "metrics-addr",
		Value: "127.0.0.1:8091",
		Usage: "address to listen on for Prometheus metrics",
	},
	&cli.StringFlag{
		Name:  "l1-registry-address",
		Value: "0x0000000000000000000000000000000000000011",
		Usage: "identity address of the L1 registry instance",
	},
	&cli.StringFlag{
		Name:  "l2-registry-address",
		Value: "0x0000000000000000000000000000000000000012",
		Usage: "identity address of the L2 registry instance",
	},
	&cli.StringFlag{
		Name:  "l1-controller-address",
		Value: "0x0000000000000000000000000000000000000021",
		Usage: "identity the L1 bridge controller uses when calling its registry",
	},
	&cli.StringFlag{
		Name:  "l2-controller-address",
		Value: "0x0000000000000000000000000000000000000022",
		Usage: "identity the L2 bridge controller uses when calling its registry",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.StringFlag{
		Name:  "log-service",
		Value: "bridge-relay",
		Usage: "add 'service' tag to logs",
	},
}

func main() {
	app := &cli.App{
		Name:  "bridge-relay",
		Usage: "Relay name ejection and migration messages between chains with a durable journal",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			journalURIs := cCtx.StringSlice("journal")
			metricsAddr := cCtx.String("metrics-addr")
			logJSON := cCtx.Bool("log-json")
			logDebug := cCtx.Bool("log-debug")
			logUID := cCtx.Bool("log-uid")
			logService := cCtx.String("log-service")

			logger := common.SetupLogger(&common.LoggingOpts{
				Debug:   logDebug,
				JSON:    logJSON,
				Service: logService,
				Version: common.Version,
			})

			if logUID {
				id := uuid.Must(uuid.NewRandom())
				logger = logger.With("uid", id.String())
			}

			addrs := make(map[string]ethcommon.Address)
			for _, name := range []string{"l1-registry-address", "l2-registry-address", "l1-controller-address", "l2-controller-address"} {
				hex := cCtx.String(name)
				if !ethcommon.IsHexAddress(hex) {
					return fmt.Errorf("invalid %s: %s", name, hex)
				}
				addrs[name] = ethcommon.HexToAddress(hex)
			}

			locations := make([]interfaces.StorageBackendLocation, 0, len(journalURIs))
			for _, uri := range journalURIs {
				locations = append(locations, interfaces.StorageBackendLocation(uri))
			}

			journal, err := storage.NewFactory(logger).CreateMultiBackend(locations)
			if err != nil {
				logger.Error("Failed to create journal backend", "err", err)
				return err
			}
			logger.Info("Journal backend ready", "backend", journal.Name())

			l1Roles := roles.NewStore(logger.With("chain", "l1"))
			l1Registry := registry.New(addrs["l1-registry-address"], l1Roles, datastore.NewStore(), clock.New(), logger.With("chain", "l1"))
			l2Roles := roles.NewStore(logger.With("chain", "l2"))
			l2Registry := registry.New(addrs["l2-registry-address"], l2Roles, datastore.NewStore(), clock.New(), logger.With("chain", "l2"))

			// Each relay's destination controller is built after the
			// relay itself, so destinations are bound last.
			relayToL1 := bridge.NewRelay(journal, nil, logger.With("direction", "l2-to-l1"))
			relayToL2 := bridge.NewRelay(journal, nil, logger.With("direction", "l1-to-l2"))

			l1Controller := bridge.NewL1Controller(addrs["l1-controller-address"], l1Registry, relayToL2, logger.With("chain", "l1"))
			l2Controller := bridge.NewL2Controller(addrs["l2-controller-address"], l2Registry, relayToL1, logger.With("chain", "l2"))
			relayToL1.SetDestination(l1Controller)
			relayToL2.SetDestination(l2Controller)

			controllerRoles := roles.Union(roles.RoleRegistrar, roles.RoleRenew, roles.RoleSetTokenObserver, roles.RoleBridge)
			l1Roles.BootstrapRootRoles(controllerRoles, addrs["l1-controller-address"])
			l2Roles.BootstrapRootRoles(controllerRoles, addrs["l2-controller-address"])

			logger.Info("Bridge controllers wired",
				"l1Controller", addrs["l1-controller-address"].Hex(),
				"l2Controller", addrs["l2-controller-address"].Hex())

			var metricsSrv *metrics.MetricsServer
			if metricsAddr != "" {
				metricsSrv, err = metrics.New(metricsAddr)
				if err != nil {
					return err
				}
				go func() {
					logger.With("metricsAddress", metricsAddr).Info("Starting metrics server")
					if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("Metrics server failed", "err", err)
					}
				}()
			}

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Relay is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			if metricsSrv != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := metricsSrv.Shutdown(ctx); err != nil {
					logger.Error("Graceful metrics server shutdown failed", "err", err)
				}
			}

			logger.Info("Relay shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
