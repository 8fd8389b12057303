package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sinaazimii/Wikidata-tools/internal/metrics"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
	"github.com/sinaazimii/Wikidata-tools/internal/pipeline"
)

// outputFlags are shared by every command that emits a script
type outputFlags struct {
	mode      string
	file      string
	omitPrint bool
	timeout   time.Duration
	workers   int
	noCache   bool
	noQuery   bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.mode, "mode", "snapshot", "diff source: snapshot, compare or auto")
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "also write the script to this file (.ttl or .txt)")
	cmd.Flags().BoolVarP(&o.omitPrint, "omit-print", "o", false, "do not print the script to stdout")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 10*time.Minute, "overall timeout")
	cmd.Flags().IntVar(&o.workers, "workers", 0, "concurrent revision pairs (default from config)")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "disable the revision cache")
	cmd.Flags().BoolVar(&o.noQuery, "no-query", false, "skip the query service when resolving ids")
}

// apply folds the flags into cfg
func (o *outputFlags) apply(cfg *model.Config) error {
	if o.file != "" {
		if err := validateOutputFile(o.file); err != nil {
			return err
		}
		cfg.Output.File = o.file
	}
	if o.omitPrint {
		cfg.Output.Print = false
	}
	if o.workers > 0 {
		cfg.Concurrency.Workers = o.workers
	}
	if o.noCache {
		cfg.Cache.Enabled = false
	}
	if o.noQuery {
		cfg.Resolver.DisableQuery = true
	}
	return nil
}

// validateOutputFile accepts only script-like extensions
func validateOutputFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttl", ".txt":
		return nil
	}
	return fmt.Errorf("output file %q must end in .ttl or .txt", path)
}

// session holds what one command run wires up
type session struct {
	cfg     *model.Config
	built   *pipeline.Built
	metrics *metrics.Metrics
	started time.Time
}

func newSession(cmd *cobra.Command, flags *outputFlags) (*session, error) {
	started := time.Now()
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := flags.apply(cfg); err != nil {
		return nil, err
	}
	mode, err := pipeline.ParseMode(flags.mode)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cmd.ErrOrStderr())
	m := metrics.New()
	return &session{
		cfg:     cfg,
		built:   pipeline.NewFromConfig(cfg, mode, logger, m, debug),
		metrics: m,
		started: started,
	}, nil
}

// commandContext cancels on interrupt and after timeout
func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// printParameters writes the run parameters to stderr before any work
func printParameters(w io.Writer, params [][2]string) {
	fmt.Fprintln(w, "Running with parameters:")
	for _, p := range params {
		fmt.Fprintf(w, "  %-12s %s\n", p[0]+":", p[1])
	}
	fmt.Fprintln(w)
}

// run processes pairs and writes the script
func (s *session) run(ctx context.Context, cmd *cobra.Command, pairs []model.RevisionPair) (err error) {
	stderr := cmd.ErrOrStderr()

	results := s.built.ProcessPairs(ctx, pairs, nil)

	var writers []io.Writer
	if s.cfg.Output.Print {
		writers = append(writers, cmd.OutOrStdout())
	}
	if s.cfg.Output.File != "" {
		f, err := os.Create(s.cfg.Output.File)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close output file: %w", closeErr)
			}
		}()
		writers = append(writers, f)
	}
	if len(writers) > 0 {
		r := pipeline.NewRenderer(io.MultiWriter(writers...), s.built.PrefixHeader(), s.cfg.Output.Verbose)
		if err := r.RenderAll(results); err != nil {
			return fmt.Errorf("write script: %w", err)
		}
	}

	if path := s.cfg.Metrics.TextFile; path != "" {
		if err := s.metrics.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	sum := summarize(results)
	fmt.Fprintf(stderr, "\nPairs: %d  Failed: %d  Deletes: %d  Inserts: %d  Diagnostics: %d\n",
		len(results), sum.failed, sum.deletes, sum.inserts, sum.diagnostics)
	if s.cfg.Output.File != "" {
		fmt.Fprintf(stderr, "Script written to %s\n", s.cfg.Output.File)
	}
	fmt.Fprintf(stderr, "Execution time: %s\n", time.Since(s.started).Round(time.Millisecond))

	if len(results) > 0 && sum.failed == len(results) {
		return errors.New("no revision pair could be processed")
	}
	return nil
}

type summary struct {
	failed, deletes, inserts, diagnostics int
}

func summarize(results []*pipeline.PairResult) summary {
	var s summary
	for _, r := range results {
		if r.Err != nil {
			s.failed++
		}
		s.deletes += r.Stats.Deletes
		s.inserts += r.Stats.Inserts
		s.diagnostics += len(r.Diagnostics)
	}
	return s
}
