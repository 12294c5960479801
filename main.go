package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/nexlate/tracker/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose    bool
	port       string
	backendURL string
	latesHost  string
	latesPort  string
	dbDriver   string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nexlate",
	Short: "Nex Late Tracker dashboard and lates backend",
	Long: `Nex Late Tracker keeps a list of late arrivals.

"serve" runs the web dashboard, which proxies to a lates backend.
"backend" runs the lates backend itself. "dev" runs both.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if !config.LoadEnv() {
			logger.Info("File .env not found, reading configuration from the environment")
		}

		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		applyFlags(cmd.Flags(), cfg)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard",
	RunE:  runServe,
}

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Run the lates backend",
	RunE:  runBackend,
}

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Run the dashboard against a local lates backend",
	RunE:  runDev,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&port, "port", "", "Dashboard port (PORT)")
	flags.StringVar(&backendURL, "backend-url", "", "Lates backend base URL (LATES_BACKEND_URL)")
	flags.StringVar(&latesHost, "lates-host", "", "Lates backend listen host (LATES_HOST)")
	flags.StringVar(&latesPort, "lates-port", "", "Lates backend listen port (LATES_PORT)")
	flags.StringVar(&dbDriver, "db-driver", "", "Lates backend store: sqlite3, postgres or memory (DB_DRIVER)")

	rootCmd.AddCommand(serveCmd, backendCmd, devCmd)
}

// applyFlags lets flags given on the command line win over the environment.
func applyFlags(flags *pflag.FlagSet, c *config.Config) {
	if flags.Changed("port") {
		c.Port = port
	}
	if flags.Changed("backend-url") {
		c.BackendURL = strings.TrimRight(backendURL, "/")
	}
	if flags.Changed("lates-host") {
		c.BackendHost = latesHost
	}
	if flags.Changed("lates-port") {
		c.BackendPort = latesPort
	}
	if flags.Changed("db-driver") {
		c.DBDriver = dbDriver
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
