package main

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/namechain/registry/common"
	"github.com/namechain/registry/datastore"
	"github.com/namechain/registry/httpserver"
	"github.com/namechain/registry/registrar"
	"github.com/namechain/registry/registry"
	"github.com/namechain/registry/roles"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:  "metrics-addr",
		Value: "127.0.0.1:8090",
		Usage: "address to listen on for Prometheus metrics",
	},
	&cli.StringFlag{
		Name:  "registry-address",
		Value: "0x0000000000000000000000000000000000000001",
		Usage: "identity address of the registry instance",
	},
	&cli.StringFlag{
		Name:  "registrar-address",
		Value: "0x0000000000000000000000000000000000000002",
		Usage: "identity address the registrar uses when calling the registry",
	},
	&cli.Int64Flag{
		Name:  "min-commitment-age-seconds",
		Value: 60,
		Usage: "minimum age of a commitment before it can be revealed",
	},
	&cli.Int64Flag{
		Name:  "max-commitment-age-seconds",
		Value: 86400,
		Usage: "maximum age of a commitment before it expires",
	},
	&cli.StringFlag{
		Name:  "rent-rate-wei",
		Value: "158548959919",
		Usage: "base rent per second in wei",
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
		Value: "registry-server",
		Usage: "add 'service' tag to logs",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	app := &cli.App{
		Name:  "registry-server",
		Usage: "Serve the name registry and commit-reveal registrar API",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String("listen-addr")
			metricsAddr := cCtx.String("metrics-addr")
			registryAddrHex := cCtx.String("registry-address")
			registrarAddrHex := cCtx.String("registrar-address")
			minAge := time.Duration(cCtx.Int64("min-commitment-age-seconds")) * time.Second
			maxAge := time.Duration(cCtx.Int64("max-commitment-age-seconds")) * time.Second
			rentRate := cCtx.String("rent-rate-wei")
			logJSON := cCtx.Bool("log-json")
			logDebug := cCtx.Bool("log-debug")
			logUID := cCtx.Bool("log-uid")
			logService := cCtx.String("log-service")
			enablePprof := cCtx.Bool("pprof")
			drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

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

			if !ethcommon.IsHexAddress(registryAddrHex) {
				return fmt.Errorf("invalid registry-address: %s", registryAddrHex)
			}
			if !ethcommon.IsHexAddress(registrarAddrHex) {
				return fmt.Errorf("invalid registrar-address: %s", registrarAddrHex)
			}
			registryAddr := ethcommon.HexToAddress(registryAddrHex)
			registrarAddr := ethcommon.HexToAddress(registrarAddrHex)

			rate, ok := new(big.Int).SetString(rentRate, 10)
			if !ok {
				return fmt.Errorf("invalid rent-rate-wei: %s", rentRate)
			}

			roleStore := roles.NewStore(logger)
			names := registry.New(registryAddr, roleStore, datastore.NewStore(), clock.New(), logger)
			roleStore.BootstrapRootRoles(roles.Union(roles.RoleRegistrar, roles.RoleRenew), registrarAddr)
			logger.Info("Registry initialized",
				"registryAddress", registryAddr.Hex(),
				"registrarAddress", registrarAddr.Hex())

			rgr := registrar.New(registrarAddr, names, &registrar.FixedPriceOracle{RatePerSecond: rate},
				clock.New(), minAge, maxAge, logger)

			cfg := &httpserver.HTTPServerConfig{
				ListenAddr:               listenAddr,
				MetricsAddr:              metricsAddr,
				Log:                      logger,
				EnablePprof:              enablePprof,
				DrainDuration:            drainDuration,
				GracefulShutdownDuration: 30 * time.Second,
				ReadTimeout:              60 * time.Second,
				WriteTimeout:             30 * time.Second,
			}

			server, err := httpserver.New(cfg, httpserver.NewHandler(rgr, names, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
