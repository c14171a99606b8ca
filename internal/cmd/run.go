package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/snarehq/snare/internal/aggregator"
	"github.com/snarehq/snare/internal/config"
	"github.com/snarehq/snare/internal/export"
	"github.com/snarehq/snare/internal/filter"
	"github.com/snarehq/snare/internal/model"
	"github.com/snarehq/snare/internal/monitor"
	"github.com/snarehq/snare/internal/processor"
	"github.com/snarehq/snare/internal/server"
	"github.com/snarehq/snare/internal/sink"
	"github.com/snarehq/snare/internal/transport"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the exception detection pipeline",
	Long: `Run every monitor defined in the config file, aggregate their
exception events, and deliver them to the configured sinks until
interrupted.

Examples:
  snare run
  snare run --config prod.yaml
  snare run -v`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// --- Graceful shutdown on SIGINT/SIGTERM ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "snare shutting down gracefully...")
		cancel()
	}()

	// --- Monitors ---
	ckpt, err := transport.NewCheckpoint(filepath.Join(".", ".snare-state.json"))
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	monitors, err := buildMonitors(cfg.Monitors, ckpt, logger)
	if err != nil {
		return err
	}
	logger.Info("monitoring", "sources", len(monitors))

	agg := aggregator.New(monitors, logger)

	// --- Sinks ---
	sinks, broadcaster, err := buildSinks(cfg, logger)
	if err != nil {
		return err
	}
	composite := sink.NewComposite(logger, sinks...)

	// --- Dashboard ---
	if cfg.Dashboard.Enabled {
		srv := server.New(agg.Snapshot, broadcaster, cfg.Dashboard.Port, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("dashboard server stopped", "error", err)
			}
		}()
	}

	// --- Filters ---
	filters, err := buildFilters(cfg.Filter)
	if err != nil {
		return err
	}

	// --- Run the pipeline ---
	go agg.Start(ctx)

	seq := agg.Events()
	if len(filters) > 0 {
		seq = filter.Wrap(seq, filters...)
	}

	proc := processor.New(composite, logger)
	processed, err := proc.Run(ctx, seq)
	if err != nil {
		return err
	}

	// --- Teardown ---
	if cfg.Export != "" {
		if err := export.DumpFile(cfg.Export, agg.RetainedBySource()); err != nil {
			logger.Error("export failed", "path", cfg.Export, "error", err)
		} else {
			logger.Info("events exported", "path", cfg.Export)
		}
	}
	if err := ckpt.Save(); err != nil {
		logger.Warn("checkpoint save failed", "error", err)
	}

	fmt.Fprintf(os.Stderr, "processed %d exception events\n", processed)
	return nil
}

// buildMonitors constructs one monitor per configured source, expanding
// file glob patterns into one source per matched file.
func buildMonitors(configs []config.MonitorConfig, ckpt *transport.Checkpoint, logger *slog.Logger) ([]*monitor.Monitor, error) {
	var monitors []*monitor.Monitor
	for _, mc := range configs {
		expanded, err := expandFileSource(mc)
		if err != nil {
			return nil, err
		}
		for _, c := range expanded {
			tr, err := buildTransport(c.URL, ckpt, logger)
			if err != nil {
				return nil, err
			}
			m, err := monitor.New(c, tr, logger)
			if err != nil {
				return nil, err
			}
			monitors = append(monitors, m)
		}
	}
	return monitors, nil
}

// expandFileSource turns a file:// source with glob characters into one
// config per matched file.
func expandFileSource(mc config.MonitorConfig) ([]config.MonitorConfig, error) {
	path, ok := strings.CutPrefix(mc.URL, "file://")
	if !ok || !strings.ContainsAny(path, "*?[") {
		return []config.MonitorConfig{mc}, nil
	}

	matches, err := transport.ExpandGlob(path)
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", path, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files matched pattern %q", path)
	}

	out := make([]config.MonitorConfig, 0, len(matches))
	for _, m := range matches {
		c := mc
		c.URL = "file://" + m
		c.Name = mc.ID() + ":" + filepath.Base(m)
		out = append(out, c)
	}
	return out, nil
}

func buildTransport(url string, ckpt *transport.Checkpoint, logger *slog.Logger) (transport.Transport, error) {
	if strings.HasPrefix(url, "file://") {
		return transport.NewFileWithCheckpoint(logger, ckpt), nil
	}
	return transport.ForURL(url, logger)
}

// buildSinks assembles the sink chain from config. The broadcaster is
// always returned so the dashboard can attach to it.
func buildSinks(cfg *config.Config, logger *slog.Logger) ([]sink.Sink, *server.Broadcaster, error) {
	var sinks []sink.Sink

	if cfg.Output.Console {
		sinks = append(sinks, sink.NewConsoleSink(os.Stdout, cfg.Output.ShowContext, logger))
	}

	if cfg.Output.Path != "" {
		fs, err := sink.NewFileSink(cfg.Output.Path, cfg.Output.Format)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, fs)
	}

	if cfg.Alert.Threshold > 0 {
		var notifier sink.Notifier
		if cfg.Alert.WebhookURL != "" {
			notifier = sink.NewWebhookNotifier(cfg.Alert.WebhookURL)
		} else {
			notifier = &sink.LogNotifier{Logger: logger}
		}
		as, err := sink.NewAlertSink(cfg.Alert.Threshold, cfg.Alert.Window, cfg.Alert.ResetOnFire, notifier, logger)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, as)
	}

	broadcaster := server.NewBroadcaster(logger)
	if cfg.Dashboard.Enabled {
		sinks = append(sinks, broadcaster)
	}

	return sinks, broadcaster, nil
}

func buildFilters(fc config.FilterConfig) ([]filter.Filter, error) {
	var filters []filter.Filter
	if len(fc.Types) > 0 {
		filters = append(filters, filter.ByExceptionTypes(fc.Types...))
	}
	if fc.URLPattern != "" {
		f, err := filter.BySourcePattern(fc.URLPattern)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if fc.MinSeverity != "" {
		filters = append(filters, filter.ByMinSeverity(model.Severity(strings.ToUpper(fc.MinSeverity))))
	}
	return filters, nil
}
