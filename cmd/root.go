package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/sqriak/sqriak/internal/api"
	"github.com/sqriak/sqriak/internal/config"
	"github.com/sqriak/sqriak/internal/log"
	"github.com/sqriak/sqriak/internal/metrics"
	"github.com/sqriak/sqriak/internal/redirector"
	"github.com/sqriak/sqriak/internal/riak"
	"github.com/sqriak/sqriak/internal/statistics"
)

var (
	AppVersion    = "Development"
	shutdownChain []func() error

	// serializes reloads triggered by SIGHUP and by the file watcher
	reloadMu sync.Mutex
)

var rootCmd = &cobra.Command{
	Use:   "sqriak [config-file]",
	Short: "sqriak is a Squid url_rewrite helper backed by Riak",
	Long: "sqriak answers Squid url_rewrite_program requests: the host of every request URL is " +
		"looked up as a key in a Riak bucket, and requests whose key exists are redirected.",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runRoot,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Short flags
	rootCmd.Flags().StringP("config", "c", "", "Config file path")
	rootCmd.Flags().StringP("log-level", "l", "", "Log level: debug, info, warn, error")
	rootCmd.Flags().BoolP("version", "v", false, "Show version")
	rootCmd.Flags().BoolP("generate-config", "g", false, "Generate template config file")

	// Long flags
	rootCmd.Flags().String("redirect-url", "", "URL answered for blocked requests")
	rootCmd.Flags().String("riak-bucket", "", "Riak bucket holding blocked keys")
	rootCmd.Flags().String("riak-host", "", "Riak HTTP interface IPv4 address")
	rootCmd.Flags().Int("riak-port", 0, "Riak HTTP interface port")
	rootCmd.Flags().String("log-file", "", "Log file path")
	rootCmd.Flags().Bool("syslog", false, "Also log to syslog")
	rootCmd.Flags().Bool("watch-config", false, "Reload when the config file changes")
	rootCmd.Flags().String("stats-file", "", "Redirect statistics dump file")
	rootCmd.Flags().String("api-server", "", "Status API listen address")

	// Bind all flags to viper using the config key names
	_ = viper.BindPFlag("config", rootCmd.Flags().Lookup("config"))
	_ = viper.BindPFlag("log-level", rootCmd.Flags().Lookup("log-level"))
	_ = viper.BindPFlag("redirect_url", rootCmd.Flags().Lookup("redirect-url"))
	_ = viper.BindPFlag("riak_bucket", rootCmd.Flags().Lookup("riak-bucket"))
	_ = viper.BindPFlag("riak_host", rootCmd.Flags().Lookup("riak-host"))
	_ = viper.BindPFlag("riak_port", rootCmd.Flags().Lookup("riak-port"))
	_ = viper.BindPFlag("log-file", rootCmd.Flags().Lookup("log-file"))
	_ = viper.BindPFlag("syslog", rootCmd.Flags().Lookup("syslog"))
	_ = viper.BindPFlag("watch-config", rootCmd.Flags().Lookup("watch-config"))
	_ = viper.BindPFlag("stats-file", rootCmd.Flags().Lookup("stats-file"))
	_ = viper.BindPFlag("api-server", rootCmd.Flags().Lookup("api-server"))

	// Bind environment variables: SQRIAK_RIAK_HOST, SQRIAK_LOOKUP_TIMEOUT, ...
	viper.SetEnvPrefix("SQRIAK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// keys with no flag must be bound to be seen by Unmarshal
	_ = viper.BindEnv("api-server-secret")
	_ = viper.BindEnv("lookup.connect-timeout")
	_ = viper.BindEnv("lookup.timeout")
	_ = viper.BindEnv("lookup.user-agent")
	_ = viper.BindEnv("lookup.breaker-failures")
	_ = viper.BindEnv("lookup.breaker-timeout")
}

func initConfig() {
	config.SetDefaults()
}

// readConfigFile loads the config file named by --config or the positional
// argument. Running without a file is allowed when every required key comes
// from flags or the environment.
func readConfigFile(args []string) error {
	path := viper.GetString("config")
	if path == "" && len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	// Handle -v / --version
	showVer, _ := cmd.Flags().GetBool("version")
	if showVer {
		fmt.Printf("sqriak version %s\n", AppVersion)
		return nil
	}

	// Handle -g / --generate-config
	genConfig, _ := cmd.Flags().GetBool("generate-config")
	if genConfig {
		if _, err := config.GenerateTemplateConfig(true); err != nil {
			return fmt.Errorf("failed to generate template config: %w", err)
		}
		fmt.Printf("Template config file '%s' generated successfully.\n", config.TemplateFile)
		return nil
	}

	if err := readConfigFile(args); err != nil {
		return err
	}
	cfg, err := config.BuildConfigFromViper()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	lb := log.NewBroadcaster()
	logCloser, err := log.SetLogConf(cfg, lb)
	if err != nil {
		return fmt.Errorf("log setup: %w", err)
	}
	addShutdown("log.Close", logCloser.Close)
	defer shutdown()
	log.LogHeader(AppVersion, cfg)

	// installed before any worker starts so an early SIGHUP cannot take
	// the default action and kill the helper
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, handledSignals...)
	defer signal.Stop(sigs)

	holder := config.NewHolder(cfg)
	m := metrics.New()
	rec := statistics.NewRecorder(cfg.StatsFile)
	red := redirector.New(os.Stdin, os.Stdout, holder, riak.New(cfg), m, rec)

	if cfg.APIServer != "" {
		srv := api.New(cfg.APIServer, cfg.APIServerSecret, AppVersion, holder, m, rec, lb)
		if err := srv.Start(); err != nil {
			slog.Error("srv.Start", slog.Any("error", err))
			return err
		}
		addShutdown("srv.Close", srv.Close)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rec.Run(ctx)
		return nil
	})
	g.Go(func() error {
		// the proxy closing our stdin is the normal way to stop
		defer stop()
		return red.Run(ctx)
	})
	reloadErrs := make(chan error, 1)
	if cfg.WatchConfig {
		watchConfig(holder, m, reloadErrs)
	}
	g.Go(func() error {
		return handleSignals(ctx, sigs, stop, holder, m, reloadErrs)
	})

	if err := g.Wait(); err != nil {
		slog.Error("sqriak stopped", slog.Any("error", err))
		return err
	}
	return nil
}

var handledSignals = []os.Signal{
	syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGUSR1, syscall.SIGUSR2,
}

// handleSignals reloads on SIGHUP and stops on the termination signals. A
// failed reload, from SIGHUP or from the file watcher, is fatal.
func handleSignals(ctx context.Context, sigs <-chan os.Signal, stop context.CancelFunc, holder *config.Holder, m *metrics.Metrics, reloadErrs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-reloadErrs:
			return fmt.Errorf("reload: %w", err)
		case s := <-sigs:
			slog.Info("Received signal", slog.String("signal", s.String()))
			if s != syscall.SIGHUP {
				stop()
				return nil
			}
			if err := reload(holder, m); err != nil {
				return fmt.Errorf("reload: %w", err)
			}
		}
	}
}

// watchConfig reloads on config file changes and hands failures to errs.
func watchConfig(holder *config.Holder, m *metrics.Metrics, errs chan<- error) {
	if viper.ConfigFileUsed() == "" {
		slog.Warn("watch-config set without a config file")
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		slog.Info("config file changed", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		if err := reload(holder, m); err != nil {
			select {
			case errs <- err:
			default:
			}
		}
	})
	viper.WatchConfig()
}

// reload re-reads the config file and swaps the new snapshot in. Lines
// already being answered finish with the snapshot they started with.
func reload(holder *config.Holder, m *metrics.Metrics) error {
	reloadMu.Lock()
	defer reloadMu.Unlock()

	if viper.ConfigFileUsed() != "" {
		if err := viper.ReadInConfig(); err != nil {
			m.IncReload(false)
			return fmt.Errorf("read config file: %w", err)
		}
	}
	cfg, err := config.BuildConfigFromViper()
	if err != nil {
		m.IncReload(false)
		return fmt.Errorf("config error: %w", err)
	}

	prev := holder.Store(cfg)
	log.SetLevel(cfg.LogLevel)
	m.IncReload(true)
	slog.Info("configuration reloaded", slog.Any("config", cfg))

	if prev != nil && prev.Lookup != cfg.Lookup {
		slog.Warn("lookup timeouts and breaker settings take effect after restart")
	}
	if prev != nil && (prev.APIServer != cfg.APIServer || prev.StatsFile != cfg.StatsFile ||
		prev.LogFile != cfg.LogFile || prev.Syslog != cfg.Syslog) {
		slog.Warn("listener and log sink changes take effect after restart")
	}
	return nil
}

func addShutdown(name string, fn func() error) {
	shutdownChain = append(shutdownChain, func() error {
		if err := fn(); err != nil {
			slog.Error(name, slog.Any("error", err))
			return err
		}
		return nil
	})
}

func shutdown() {
	slog.Info("sqriak exit")
	for i := len(shutdownChain) - 1; i >= 0; i-- {
		_ = shutdownChain[i]()
	}
	shutdownChain = nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
