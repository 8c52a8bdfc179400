package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"worldclear/internal/admin"
	"worldclear/internal/config"
	"worldclear/internal/controller"
	"worldclear/internal/dashboard"
	"worldclear/internal/scenario"
	"worldclear/internal/stats"
	"worldclear/internal/tracing"
)

var (
	runScenario    string
	runStep        time.Duration
	runSeed        int64
	runLogFile     string
	runPrintOnly   bool
	runNoDashboard bool
	runLogOutput   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller against a simulated world",
	Long: "run steps a simulated world, samples its throughput and applies the configured cleanup " +
		"rules. SIGHUP reloads the configuration file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := config.LoadRuntime(envFile)
		if err != nil {
			return err
		}
		cfg, warns, err := loadConfig()
		if err != nil {
			return err
		}

		useDashboard := cfg.Dashboard.Enabled && !runNoDashboard && term.IsTerminal(int(os.Stdout.Fd()))
		logOut, closeLog, err := logOutput(useDashboard)
		if err != nil {
			return err
		}
		defer closeLog()
		log := newLogger(cfg, logOut)
		for _, w := range warns {
			log.Warn("configuration corrected", "detail", w)
		}

		sc, err := resolveScenario(runScenario)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		shutdownTracing, err := tracing.Setup(ctx, "worldclear", rt.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := shutdownTracing(sctx); err != nil {
				log.Warn("tracing shutdown failed", "err", err)
			}
		}()

		sink, closeSink, err := newSink(cfg, rt, runPrintOnly, runLogFile, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeSink(); err != nil {
				log.Warn("closing stats sink failed", "err", err)
			}
		}()
		recorder := stats.NewAsync(sink, rt.ServerName, cfg.Database.PoolSize, cfg.Database.QueueSize, log)
		defer recorder.Close()

		runner := scenario.NewRunner(sc, runStep, func(from, to string) {
			log.Info("scenario phase changed", "from", from, "to", to)
		})
		world := sc.Build(runStep, cfg.Throughput.TicksPerSecond, runner, runSeed)

		ctrl := controller.New(controller.Options{
			Config:     cfg,
			World:      world,
			Principals: world,
			Source:     world,
			Recorder:   recorder,
			Loader:     loadConfig,
			Logger:     log,
		})
		ctrl.Loop().Every(runStep, func(context.Context) { world.Step() })
		log.Info("starting controller", "server", rt.ServerName, "scenario", sc.Name, "scopes", len(sc.Scopes))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return ctrl.Run(gctx) })
		g.Go(func() error { return admin.NewServer(ctrl, log).Start(gctx, rt.AdminAddr) })
		g.Go(func() error {
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-hup:
					if err := ctrl.Reload(gctx); err != nil {
						log.Error("reload failed", "err", err)
					}
				}
			}
		})
		if useDashboard {
			d := dashboard.New(ctrl, cfg.Dashboard.RefreshInterval)
			ctrl.AddNotifier(d)
			g.Go(func() error {
				defer cancel()
				return d.Run(gctx)
			})
		}

		err = g.Wait()
		log.Info("controller stopped", "dropped_stats", recorder.Dropped(), "failed_stats", recorder.Failed())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	names := make([]string, 0, len(scenario.BuiltIn()))
	for name := range scenario.BuiltIn() {
		names = append(names, name)
	}
	sort.Strings(names)

	runCmd.Flags().StringVar(&runScenario, "scenario", "steady",
		fmt.Sprintf("Built-in scenario (%s) or path to a scenario YAML", strings.Join(names, ", ")))
	runCmd.Flags().DurationVar(&runStep, "step", time.Second, "World step interval")
	runCmd.Flags().Int64Var(&runSeed, "seed", time.Now().UnixNano(), "Random seed for spawning")
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "Also append stats records to this JSONL file")
	runCmd.Flags().BoolVar(&runPrintOnly, "print-only", false, "Print stats records to STDOUT instead of the configured database")
	runCmd.Flags().BoolVar(&runNoDashboard, "no-dashboard", false, "Disable the terminal dashboard")
	runCmd.Flags().StringVar(&runLogOutput, "log-output", "", "Write logs to this file (required to see logs while the dashboard runs)")
}

func resolveScenario(name string) (*scenario.Scenario, error) {
	if sc, ok := scenario.BuiltIn()[name]; ok {
		return &sc, nil
	}
	if _, err := os.Stat(name); err != nil {
		return nil, fmt.Errorf("unknown scenario %q", name)
	}
	return scenario.Load(name)
}

// logOutput picks the log destination. The dashboard owns the terminal, so
// without --log-output logs are dropped while it runs.
func logOutput(dashboard bool) (io.Writer, func(), error) {
	if runLogOutput != "" {
		f, err := os.OpenFile(runLogOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log output: %w", err)
		}
		return f, func() { f.Close() }, nil
	}
	if dashboard {
		return io.Discard, func() {}, nil
	}
	return os.Stdout, func() {}, nil
}
