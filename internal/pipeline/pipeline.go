// Package pipeline turns revision pairs into SPARQL update statements.
//
// Each pair runs strictly in sequence: fetch, parse, canonicalize, diff,
// resolve, emit. Pairs share nothing mutable and run concurrently on a
// bounded pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sinaazimii/Wikidata-tools/internal/canon"
	"github.com/sinaazimii/Wikidata-tools/internal/delta"
	"github.com/sinaazimii/Wikidata-tools/internal/emit"
	"github.com/sinaazimii/Wikidata-tools/internal/graph"
	"github.com/sinaazimii/Wikidata-tools/internal/metrics"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
	"github.com/sinaazimii/Wikidata-tools/internal/reify"
	"github.com/sinaazimii/Wikidata-tools/internal/snapshot"
	"github.com/sinaazimii/Wikidata-tools/internal/worker"
)

// Source provides the raw documents of a revision pair
type Source interface {
	// FetchSnapshot returns the Turtle dump of a revision; revision 0 yields nil
	FetchSnapshot(ctx context.Context, entityID string, revID int64) ([]byte, error)
	// FetchCompare returns the rendered diff between two revisions
	FetchCompare(ctx context.Context, fromRev, toRev int64) (string, error)
}

// CachedSource is a Source that can report documents it already holds
// without a network round trip
type CachedSource interface {
	CachedSnapshot(entityID string, revID int64) ([]byte, bool)
}

// Mode selects how a pair is diffed
type Mode string

const (
	// ModeSnapshot diffs two full revision dumps
	ModeSnapshot Mode = "snapshot"
	// ModeCompare reads the rendered diff and resolves statement ids
	ModeCompare Mode = "compare"
	// ModeAuto uses snapshots and falls back to the rendered diff when a
	// snapshot cannot be fetched
	ModeAuto Mode = "auto"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSnapshot, ModeCompare, ModeAuto:
		return m, nil
	case "":
		return ModeSnapshot, nil
	}
	return "", fmt.Errorf("unknown mode %q (want snapshot, compare or auto)", s)
}

// Options configures a Pipeline
type Options struct {
	Source       Source
	Store        reify.QueryStore // nil skips the query tier
	Canon        *canon.Canonicalizer
	Emitter      *emit.Emitter
	Mode         Mode
	QueryTimeout time.Duration
	Workers      int
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Pipeline processes revision pairs. It is safe for concurrent use.
type Pipeline struct {
	source   Source
	canon    *canon.Canonicalizer
	emitter  *emit.Emitter
	resolver *reify.Resolver
	mode     Mode
	workers  int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a pipeline
func New(opts Options) *Pipeline {
	if opts.Canon == nil {
		opts.Canon = canon.New(nil, canon.DefaultNoiseMarkers)
	}
	if opts.Emitter == nil {
		opts.Emitter = emit.New(opts.Canon.Table())
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Mode == "" {
		opts.Mode = ModeSnapshot
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	p := &Pipeline{
		source:  opts.Source,
		canon:   opts.Canon,
		emitter: opts.Emitter,
		mode:    opts.Mode,
		workers: opts.Workers,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	p.resolver = reify.NewResolver(opts.Store, documents{p}, opts.Canon, opts.QueryTimeout, opts.Logger)
	return p
}

// PrefixHeader returns the PREFIX declarations matching the emitted names
func (p *Pipeline) PrefixHeader() string {
	return p.emitter.PrefixHeader()
}

// Stats summarises one pair
type Stats struct {
	Path       Mode          `json:"path"`
	OldTriples int           `json:"old_triples"`
	NewTriples int           `json:"new_triples"`
	Added      int           `json:"added"`
	Removed    int           `json:"removed"`
	Deletes    int           `json:"deletes"`
	Inserts    int           `json:"inserts"`
	Claims     int           `json:"claims"`
	Resolved   [4]int        `json:"resolved_by_tier"`
	Misses     int           `json:"misses"`
	Duration   time.Duration `json:"duration"`
}

// PairResult is the outcome of one pair. Err is set when the pair could not
// be diffed at all; row-level problems only add diagnostics.
type PairResult struct {
	Pair        model.RevisionPair `json:"pair"`
	Delete      string             `json:"delete,omitempty"`
	Insert      string             `json:"insert,omitempty"`
	Diagnostics []model.Diagnostic `json:"diagnostics,omitempty"`
	Err         error              `json:"-"`
	Stats       Stats              `json:"stats"`
}

// GetError lets a PairResult travel through the worker pool
func (r *PairResult) GetError() error {
	return r.Err
}

// Empty reports whether the pair produced no statements
func (r *PairResult) Empty() bool {
	return r.Delete == "" && r.Insert == ""
}

type runIDKey struct{}

// WithRunID tags ctx with a run identifier used in logs
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

func (p *Pipeline) pairLogger(ctx context.Context, pair model.RevisionPair) *slog.Logger {
	log := p.logger.With("entity", pair.EntityID, "old_rev", pair.OldRevID, "new_rev", pair.NewRevID)
	if id := runID(ctx); id != "" {
		log = log.With("run_id", id)
	}
	return log
}

// HandlePair processes a pair with the configured mode
func (p *Pipeline) HandlePair(ctx context.Context, pair model.RevisionPair) worker.Result {
	switch p.mode {
	case ModeCompare:
		return p.ProcessCompare(ctx, pair)
	case ModeAuto:
		return p.observe(ctx, pair, p.autoPath)
	default:
		return p.ProcessPair(ctx, pair)
	}
}

// ProcessPairs processes pairs concurrently and returns their results in
// input order
func (p *Pipeline) ProcessPairs(ctx context.Context, pairs []model.RevisionPair, onDone func(*PairResult)) []*PairResult {
	if runID(ctx) == "" {
		ctx = WithRunID(ctx, uuid.NewString())
	}
	p.logger.Info("processing pairs", "run_id", runID(ctx), "pairs", len(pairs), "workers", p.workers, "mode", p.mode)

	batch := worker.NewBatchProcessor(p, p.workers)
	if onDone != nil {
		batch.OnResult(func(r worker.Result) { onDone(r.(*PairResult)) })
	}
	results, failed := batch.ProcessPairs(ctx, pairs)

	out := make([]*PairResult, len(results))
	for i, r := range results {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = errors.New("not processed")
			}
			out[i] = &PairResult{Pair: pairs[i], Err: err}
			continue
		}
		out[i] = r.(*PairResult)
	}
	p.logger.Info("pairs processed", "run_id", runID(ctx), "pairs", len(out), "failed", failed)
	return out
}

// ProcessPair diffs the full snapshots of the two revisions
func (p *Pipeline) ProcessPair(ctx context.Context, pair model.RevisionPair) *PairResult {
	return p.observe(ctx, pair, p.snapshotPath)
}

// ProcessCompare builds the delta from the rendered diff. Statement and
// reference ids the diff does not show are resolved through the tiers. New
// entities have no rendered diff and take the snapshot path.
func (p *Pipeline) ProcessCompare(ctx context.Context, pair model.RevisionPair) *PairResult {
	return p.observe(ctx, pair, p.comparePath)
}

// pairPath fills res by one way of building the delta
type pairPath func(ctx context.Context, res *PairResult, log *slog.Logger)

// observe runs one path for a pair and records the outcome once
func (p *Pipeline) observe(ctx context.Context, pair model.RevisionPair, run pairPath) *PairResult {
	start := time.Now()
	res := &PairResult{Pair: pair, Stats: Stats{Path: ModeSnapshot}}
	log := p.pairLogger(ctx, pair)
	defer p.finish(res, start, log)

	if err := pair.Validate(); err != nil {
		res.Err = fmt.Errorf("invalid pair: %w", err)
		return res
	}
	run(ctx, res, log)
	return res
}

func (p *Pipeline) snapshotPath(ctx context.Context, res *PairResult, log *slog.Logger) {
	pair := res.Pair
	res.Stats.Path = ModeSnapshot

	oldSnap, err := p.loadSnapshot(ctx, res, pair.EntityID, pair.OldRevID)
	if err != nil {
		p.fail(res, err)
		return
	}
	newSnap, err := p.loadSnapshot(ctx, res, pair.EntityID, pair.NewRevID)
	if err != nil {
		p.fail(res, err)
		return
	}
	res.Stats.OldTriples, res.Stats.NewTriples = oldSnap.Len(), newSnap.Len()

	d := delta.Diff(oldSnap, newSnap, pair.EntityID)
	res.Stats.Added, res.Stats.Removed = d.Added.Len(), d.Removed.Len()
	log.Debug("diffed", "added", res.Stats.Added, "removed", res.Stats.Removed)

	p.emit(res, p.resolver.ResolveDelta(pair, d))
}

func (p *Pipeline) comparePath(ctx context.Context, res *PairResult, log *slog.Logger) {
	pair := res.Pair
	if pair.IsNew() {
		p.snapshotPath(ctx, res, log)
		return
	}
	res.Stats.Path = ModeCompare

	html, err := p.source.FetchCompare(ctx, pair.OldRevID, pair.NewRevID)
	if err != nil {
		p.fail(res, fmt.Errorf("%w: %w", model.ErrSnapshotUnavailable, err))
		return
	}
	rows, err := snapshot.ParseCompare(html)
	if err != nil {
		p.fail(res, err)
		return
	}

	plan := reify.BuildPlan(pair, rows)
	res.Stats.Added, res.Stats.Removed = countRows(plan.Rows)
	log.Debug("planned", "rows", len(plan.Rows), "claims", len(plan.Claims), "references", len(plan.References))

	p.emit(res, p.resolver.ResolvePlan(ctx, plan, p.localBlocks(pair)))
}

// autoPath tries the snapshots first and falls back to the rendered diff
// when a revision document cannot be fetched. The snapshot failure stays on
// record as a diagnostic of the pair.
func (p *Pipeline) autoPath(ctx context.Context, res *PairResult, log *slog.Logger) {
	p.snapshotPath(ctx, res, log)
	if !errors.Is(res.Err, model.ErrSnapshotUnavailable) || res.Pair.IsNew() {
		return
	}
	log.Info("snapshot unavailable, using rendered diff", "error", res.Err)
	*res = PairResult{Pair: res.Pair, Diagnostics: res.Diagnostics}
	p.comparePath(ctx, res, log)
}

func countRows(rows []reify.Row) (added, removed int) {
	for _, r := range rows {
		if r.Op == graph.OpInsert {
			added++
		} else {
			removed++
		}
	}
	return added, removed
}

// localBlocks returns the snapshots this process already holds for the pair
func (p *Pipeline) localBlocks(pair model.RevisionPair) reify.Blocks {
	cs, ok := p.source.(CachedSource)
	if !ok {
		return reify.Blocks{}
	}
	load := func(rev int64) *graph.TripleSet {
		raw, ok := cs.CachedSnapshot(pair.EntityID, rev)
		if !ok {
			return nil
		}
		doc, err := snapshot.Parse(raw)
		if err != nil {
			return nil
		}
		return p.canon.Snapshot(pair.EntityID, rev, doc.Triples).Triples
	}
	return reify.Blocks{Old: load(pair.OldRevID), New: load(pair.NewRevID)}
}

func (p *Pipeline) emit(res *PairResult, r *reify.Result) {
	res.Diagnostics = append(res.Diagnostics, r.Diagnostics...)
	res.Stats.Resolved, res.Stats.Misses, res.Stats.Claims = r.Resolved, r.Misses, r.Claims

	del, ins, diags := p.emitter.Emit(res.Pair, r.Delete, r.Insert)
	res.Delete, res.Insert = del, ins
	res.Diagnostics = append(res.Diagnostics, diags...)
	res.Stats.Deletes, res.Stats.Inserts = countLines(del), countLines(ins)
}

func countLines(block string) int {
	if block == "" {
		return 0
	}
	return strings.Count(block, "\n") + 1
}

// fail records a pair-fatal error with its diagnostic
func (p *Pipeline) fail(res *PairResult, err error) {
	res.Err = err
	res.Diagnostics = append(res.Diagnostics, model.NewDiagnostic(model.DiagnosticKindFor(err), res.Pair, "", err.Error()))
}

func (p *Pipeline) finish(res *PairResult, start time.Time, log *slog.Logger) {
	res.Stats.Duration = time.Since(start)

	outcome := "ok"
	if res.Err != nil {
		outcome = "failed"
		log.Warn("pair skipped", "error", res.Err)
	} else {
		log.Info("pair processed",
			"path", res.Stats.Path,
			"deletes", res.Stats.Deletes,
			"inserts", res.Stats.Inserts,
			"misses", res.Stats.Misses,
			"duration", res.Stats.Duration)
	}

	p.metrics.ObservePair(outcome, res.Stats.Duration)
	p.metrics.AddStatements(graph.OpDelete.String(), res.Stats.Deletes)
	p.metrics.AddStatements(graph.OpInsert.String(), res.Stats.Inserts)
	for tier := reify.TierLocal; tier <= reify.TierDocument; tier++ {
		p.metrics.AddResolutions(tier, res.Stats.Resolved[tier])
	}
	p.metrics.AddResolutions(0, res.Stats.Misses)
	for _, d := range res.Diagnostics {
		p.metrics.IncDiagnostic(string(d.Kind))
		if !d.Kind.Fatal() {
			log.Debug("diagnostic", "kind", d.Kind, "tier", d.Tier, "triple", d.Triple, "message", d.Message)
		}
	}
}
