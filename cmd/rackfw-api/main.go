package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/datastore"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/deploy"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/eventbus"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fleet"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fw"
	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/vault"
	"github.com/rackstack/rackfw-api/health"
)

const (
	cfgFileType = "yaml"
	moduleName  = "rackfw-api"
)

var (
	cfgFile      string
	logger       *slog.Logger
	ds           *datastore.RethinkStore
	publisher    eventbus.Publisher
	credentials  vault.CredentialStore
	fleetClient  fleet.Client
	orchestrator *deploy.Orchestrator
)

var rootCmd = &cobra.Command{
	Use:   moduleName,
	Short: "an api to deploy firmware to whole racks",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
		initDataStore()
		initEventBus()
		initCredentialStore()
		initFleetClient()
		initOrchestrator()
		initSignalHandlers()
	},
	Run: func(cmd *cobra.Command, args []string) {
		run()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "failed executing root command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "alternative path to config file")
	rootCmd.Flags().StringP("log-level", "", "info", "the application log level")
	rootCmd.Flags().StringP("log-formatter", "", "json", "the application log formatter (text or json)")

	rootCmd.Flags().StringP("bind-addr", "", "127.0.0.1", "the bind addr of the api server")
	rootCmd.Flags().IntP("port", "", 8080, "the port to serve on")

	rootCmd.Flags().StringP("db-name", "", "rackfw", "the database name to use")
	rootCmd.Flags().StringP("db-addr", "", "", "the database address string to use")
	rootCmd.Flags().StringP("db-user", "", "", "the database user to use")
	rootCmd.Flags().StringP("db-password", "", "", "the database password to use")

	rootCmd.Flags().StringP("nsqd-addr", "", "", "the address of the nsqd, events are dropped when unset")
	rootCmd.Flags().StringP("nsqd-http-addr", "", "", "the address of the nsqd rest endpoint")

	rootCmd.Flags().StringP("vault-addr", "", "", "the address of the vault server, tokens are kept in memory when unset")
	rootCmd.Flags().StringP("vault-token", "", "", "the token to access vault")

	rootCmd.Flags().StringP("fleet-addr", "", "", "the address of the rack fleet manager")

	rootCmd.Flags().StringP("cache-root", "", "/var/cache/rackfw", "the root directory of the firmware artifact cache")
	rootCmd.Flags().StringSliceP("compute-tray-skus", "", nil, "compute tray SKU allow-list override")
	rootCmd.Flags().StringSliceP("switch-tray-skus", "", nil, "switch tray SKU allow-list override")

	err := viper.BindPFlags(rootCmd.Flags())
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("RACKFW_API")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetConfigType(cfgFileType)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "config file path set explicitly, but unreadable: %v\n", err)
			os.Exit(1)
		}
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("/etc/rackfw-api")
		viper.AddConfigPath("$HOME/.rackfw-api")
		viper.AddConfigPath(".")
		if err := viper.ReadInConfig(); err != nil {
			usedCfg := viper.ConfigFileUsed()
			if usedCfg != "" {
				fmt.Fprintf(os.Stderr, "config file %q unreadable: %v\n", usedCfg, err)
				os.Exit(1)
			}
		}
	}
}

func initLogging() {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		fmt.Fprintf(os.Stderr, "unparsable log level: %v\n", err)
		os.Exit(1)
	}

	var handler slog.Handler
	switch viper.GetString("log-formatter") {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		fmt.Fprintf(os.Stderr, "unsupported log formatter: %q\n", viper.GetString("log-formatter"))
		os.Exit(1)
	}

	logger = slog.New(handler).With("app", moduleName)
	slog.SetDefault(logger)
}

func initDataStore() {
	ds = datastore.New(
		logger.WithGroup("datastore"),
		viper.GetString("db-addr"),
		viper.GetString("db-name"),
		viper.GetString("db-user"),
		viper.GetString("db-password"),
	)
	if err := ds.Connect(); err != nil {
		logger.Error("cannot connect to datastore", "error", err)
		os.Exit(1)
	}
	if err := ds.Initialize(); err != nil {
		logger.Error("cannot initialize datastore", "error", err)
		os.Exit(1)
	}
}

func initEventBus() {
	nsqdAddr := viper.GetString("nsqd-addr")
	if nsqdAddr == "" {
		logger.Info("no nsqd address configured, firmware events will be dropped")
		return
	}

	nsq := eventbus.NewNSQ(logger.WithGroup("eventbus"), nsqdAddr, viper.GetString("nsqd-http-addr"), eventbus.NewPublisher)
	nsq.WaitForPublisher()
	nsq.WaitForTopicsCreated(fw.Topics)
	publisher = nsq.Publisher
}

func initCredentialStore() {
	vaultAddr := viper.GetString("vault-addr")
	if vaultAddr == "" {
		logger.Warn("no vault address configured, artifact tokens are kept in memory only")
		credentials = vault.NewMemory()
		return
	}
	credentials = vault.NewClient(logger.WithGroup("vault"), vaultAddr, viper.GetString("vault-token"))
}

func initFleetClient() {
	fleetAddr := viper.GetString("fleet-addr")
	if fleetAddr == "" {
		logger.Warn("no fleet manager address configured, firmware applies will fail")
		return
	}
	fleetClient = fleet.New(logger.WithGroup("fleet"), fleetAddr)
}

func initOrchestrator() {
	orchestrator = deploy.New(&deploy.Config{
		Log:             logger.WithGroup("deploy"),
		Store:           ds,
		Credentials:     credentials,
		Fleet:           fleetClient,
		Publisher:       publisher,
		CacheRoot:       viper.GetString("cache-root"),
		ComputeTraySKUs: viper.GetStringSlice("compute-tray-skus"),
		SwitchTraySKUs:  viper.GetStringSlice("switch-tray-skus"),
	})
}

func initSignalHandlers() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		logger.Info("received interrupt, shutting down")

		orchestrator.WaitForDownloads()

		if publisher != nil {
			publisher.Stop()
		}
		if err := ds.Close(); err != nil {
			logger.Error("unable to properly shutdown datastore", "error", err)
			os.Exit(1)
		}
		os.Exit(0)
	}()
}

func run() {
	mux := http.NewServeMux()
	mux.Handle("/health", health.New(logger.WithGroup("health"), ds.Health))
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", viper.GetString("bind-addr"), viper.GetInt("port"))
	logger.Info("start rackfw api", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("http server stopped", "error", err)
		os.Exit(1)
	}
}
