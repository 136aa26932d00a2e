package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge"
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/data"
)

const watchDebounce = 200 * time.Millisecond

var renderFlags struct {
	output       string
	keepFallback bool
	watch        bool
	metricsAddr  string
}

var renderCmd = &cobra.Command{
	Use:   "render TEMPLATE DATA",
	Short: "Render a template with JSON or YAML data",
	Long: `Render TEMPLATE with the data in DATA and write the document to the
output path. DATA is YAML when its extension is .yaml or .yml and JSON
otherwise; "-" reads JSON from standard input.

Examples:
  # Render once
  wordmerge render contract.docx contract.json -o contract-out.docx

  # Keep alternate-content fallbacks in the output
  wordmerge render report.docx report.yaml -o report.docx --keep-fallback

  # Re-render on every save and expose metrics
  wordmerge render cv.docx cv.json -o cv-out.docx --watch --metrics-addr :9090`,
	Args: cobra.ExactArgs(2),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderFlags.output, "output", "o", "output.docx", "output document path")
	renderCmd.Flags().BoolVar(&renderFlags.keepFallback, "keep-fallback", false, "keep alternate-content fallbacks")
	renderCmd.Flags().BoolVarP(&renderFlags.watch, "watch", "w", false, "re-render when the template or the data changes")
	renderCmd.Flags().StringVar(&renderFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func runRender(cmd *cobra.Command, args []string) error {
	templatePath, dataPath := args[0], args[1]
	if renderFlags.watch && dataPath == "-" {
		return errors.New("--watch cannot read data from standard input")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := wordmerge.NewMetrics()
	engine := wordmerge.NewWithOptions(
		wordmerge.WithConfig(wordmerge.GetGlobalConfig()),
		wordmerge.WithMetrics(metrics),
	)
	logger := wordmerge.WithField("output", renderFlags.output)

	if renderFlags.metricsAddr != "" {
		srv := serveMetrics(renderFlags.metricsAddr, metrics, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	job := renderJob{engine: engine, template: templatePath, data: dataPath, output: renderFlags.output}
	if err := job.run(); err != nil {
		if !renderFlags.watch {
			return err
		}
		logger.Error("Render failed: %v", err)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s\n", renderFlags.output)
	}
	if !renderFlags.watch {
		return nil
	}
	return watch(ctx, job, logger, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s\n", renderFlags.output)
	})
}

// renderJob renders one template with one data file.
type renderJob struct {
	engine   *wordmerge.Engine
	template string
	data     string
	output   string
}

func (j renderJob) run() error {
	tmpl, err := j.engine.PrepareFile(j.template)
	if err != nil {
		return err
	}
	value, err := readData(j.data)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(j.output), ".wordmerge-*.docx")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmpl.ExportTo(tmp, value, wordmerge.WithRemoveFallback(!renderFlags.keepFallback)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return os.Rename(tmp.Name(), j.output)
}

// readData parses the data file by extension.
func readData(path string) (any, error) {
	if path == "-" {
		return data.ParseJSON(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return data.ParseYAML(f)
	default:
		return data.ParseJSON(f)
	}
}

func serveMetrics(addr string, metrics *wordmerge.Metrics, logger *wordmerge.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed: %v", err)
		}
	}()
	return srv
}

// watch re-runs job whenever its template or data file changes until ctx
// is done. Directories are watched so that editors replacing files on save
// are noticed.
func watch(ctx context.Context, job renderJob, logger *wordmerge.Logger, rendered func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]bool)
	for _, p := range []string{job.template, job.data} {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	logger.Info("Watching %s and %s", job.template, job.data)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Watch stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			abs, _ := filepath.Abs(event.Name)
			if !targets[abs] {
				continue
			}
			logger.Debug("File event %s on %s", event.Op, event.Name)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			job.engine.ClearCache()
			if err := job.run(); err != nil {
				logger.Error("Render failed: %v", err)
				continue
			}
			rendered()

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			logger.Error("File watcher error: %v", err)
		}
	}
}
