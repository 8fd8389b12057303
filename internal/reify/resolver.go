package reify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sinaazimii/Wikidata-tools/internal/graph"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
)

// Resolution tiers, in the order they are tried
const (
	TierLocal    = 1
	TierQuery    = 2
	TierDocument = 3
)

// Query asks for the binding of one slot. Slots in Where are variables.
type Query struct {
	Select string
	Where  []graph.Triple
}

// QueryStore answers tier-2 lookups against a graph query service
type QueryStore interface {
	Select(ctx context.Context, q Query) (graph.Term, bool, error)
}

// DocumentSource provides tier-3 lookups: the canonical snapshot of one
// revision of an entity
type DocumentSource interface {
	Snapshot(ctx context.Context, entityID string, revID int64) (*graph.EntitySnapshot, error)
}

// TermCanonicalizer shortens terms returned by the query store
type TermCanonicalizer interface {
	Term(t graph.Term) graph.Term
}

// Blocks are the tier-1 triple sets of a pass: what the pass already holds
// for the old and the new revision. Either may be nil.
type Blocks struct {
	Old *graph.TripleSet
	New *graph.TripleSet
}

func (b Blocks) side(op graph.Op) *graph.TripleSet {
	if op == graph.OpInsert {
		return b.New
	}
	return b.Old
}

// Result is the resolved output of one pass
type Result struct {
	Delete      *graph.TripleSet
	Insert      *graph.TripleSet
	Diagnostics []model.Diagnostic
	Resolved    [4]int // slot resolutions per tier, index 0 unused
	Misses      int    // rows omitted because a slot stayed unresolved
	Claims      int    // whole statements added or removed
}

func newResult() *Result {
	return &Result{Delete: graph.NewTripleSet(0), Insert: graph.NewTripleSet(0)}
}

func (r *Result) add(row Row) {
	if row.Op == graph.OpInsert {
		r.Insert.Add(row.Triple)
	} else {
		r.Delete.Add(row.Triple)
	}
}

// Resolver resolves claim and reference slots. It holds no per-pair state
// and is safe for concurrent use; each call runs its own pass.
type Resolver struct {
	store        QueryStore
	docs         DocumentSource
	canon        TermCanonicalizer
	queryTimeout time.Duration
	logger       *slog.Logger
}

// NewResolver creates a resolver. A nil store or docs makes that tier
// report no match.
func NewResolver(store QueryStore, docs DocumentSource, canon TermCanonicalizer, queryTimeout time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	return &Resolver{
		store:        store,
		docs:         docs,
		canon:        canon,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// ResolveDelta checks a snapshot delta. Its rows are concrete; the pass walks
// them in order, removals first, and drops rows whose reified predicate does
// not sit on a statement or reference node.
func (r *Resolver) ResolveDelta(pair model.RevisionPair, d *graph.DeltaSet) *Result {
	res := newResult()
	var c Context
	walk := func(op graph.Op, set *graph.TripleSet) {
		c.Reset()
		for _, t := range set.Triples() {
			row := Row{Op: op, Triple: t}
			if msg := checkRow(row); msg != "" {
				res.Misses++
				res.Diagnostics = append(res.Diagnostics, r.miss(pair, row, TierLocal, msg))
				continue
			}
			if c.Observe(row) {
				res.Claims++
			}
			res.add(row)
		}
	}
	if d != nil {
		walk(graph.OpDelete, d.Removed)
		walk(graph.OpInsert, d.Added)
	}
	return res
}

// checkRow validates the node kind of a reified row
func checkRow(row Row) string {
	t := row.Triple
	if needsStatement(t.P) && !isStatement(t.S) {
		return fmt.Sprintf("%s needs a statement subject", t.P)
	}
	if needsReference(t.P) && !isReference(t.S) {
		return fmt.Sprintf("%s needs a reference subject", t.P)
	}
	return ""
}

// pass is the state of one ResolvePlan call
type pass struct {
	plan     *Plan
	blocks   Blocks
	ctx      Context
	bound    Bindings
	missed   map[string]string // slot key -> reason
	lastTier map[string]int
	res      *Result
	docs     map[int64]*graph.EntitySnapshot
	released map[string]bool // reference slots whose body was checked
}

// ResolvePlan resolves the slots of a rendered-diff plan. Rows are kept in
// plan order; rows whose slots cannot be resolved are omitted with a
// resolution_miss diagnostic.
func (r *Resolver) ResolvePlan(ctx context.Context, plan *Plan, blocks Blocks) *Result {
	p := &pass{
		plan:     plan,
		blocks:   blocks,
		bound:    Bindings{},
		missed:   make(map[string]string),
		lastTier: make(map[string]int),
		res:      newResult(),
		docs:     make(map[int64]*graph.EntitySnapshot),
		released: make(map[string]bool),
	}
	p.res.Diagnostics = append(p.res.Diagnostics, plan.Diagnostics...)

	for _, row := range plan.Rows {
		resolved, ok := r.resolveRow(ctx, p, row)
		if !ok {
			continue
		}
		if msg := checkRow(resolved); msg != "" {
			p.res.Misses++
			p.res.Diagnostics = append(p.res.Diagnostics, r.miss(plan.Pair, row, TierLocal, msg))
			continue
		}
		if p.ctx.Observe(resolved) {
			p.res.Claims++
		}
		p.res.add(resolved)
		if key, ok := p.unlinkedReference(row); ok {
			r.releaseReference(ctx, p, key)
		}
	}
	return p.res
}

// unlinkedReference returns the reference slot a deleted link row detaches
func (p *pass) unlinkedReference(row Row) (string, bool) {
	t := row.Triple
	if row.Op != graph.OpDelete || t.P != wasDerivedFrom || !t.O.IsSlot() {
		return "", false
	}
	if p.plan.References[t.O.Value] == nil {
		return "", false
	}
	return t.O.Value, true
}

// releaseReference deletes the body of a reference that lost a link, unless
// a statement of the new revision still cites it. When the new revision
// cannot be read the body is kept and each of its rows is reported.
func (r *Resolver) releaseReference(ctx context.Context, p *pass, key string) {
	if p.released[key] {
		return
	}
	p.released[key] = true

	rs := p.plan.References[key]
	ref := p.bound[key]
	log := r.logger.With("entity", p.plan.Pair.EntityID, "new_rev", p.plan.Pair.NewRevID, "slot", key)

	linked, tier, err := r.referenceLinked(ctx, p, ref)
	switch {
	case err != nil:
		log.Debug("reference body kept", "error", err)
		for _, s := range rs.Snaks {
			row := Row{Op: graph.OpDelete, Triple: substitute(s, p.bound)}
			p.res.Misses++
			p.res.Diagnostics = append(p.res.Diagnostics, r.miss(p.plan.Pair, row, tier, "reference body kept: "+err.Error()))
		}
	case linked:
		log.Debug("reference still cited, body kept", "tier", tier, "node", ref.String())
	default:
		for _, s := range rs.Snaks {
			p.res.add(Row{Op: graph.OpDelete, Triple: substitute(s, p.bound)})
		}
	}
}

// referenceLinked looks for any statement of the new revision linking to
// ref: the new block when the pass holds one, else the revision document
func (r *Resolver) referenceLinked(ctx context.Context, p *pass, ref graph.Term) (bool, int, error) {
	pattern := []graph.Triple{graph.T(graph.Slot("s"), wasDerivedFrom, ref)}
	if p.blocks.New != nil {
		_, ok := Match(p.blocks.New, pattern, "s")
		return ok, TierLocal, nil
	}
	if r.docs == nil {
		return false, TierDocument, fmt.Errorf("new revision %d unavailable", p.plan.Pair.NewRevID)
	}
	snap, err := r.document(ctx, p, p.plan.Pair.NewRevID)
	if err != nil {
		return false, TierDocument, fmt.Errorf("new revision %d: %w", p.plan.Pair.NewRevID, err)
	}
	_, ok := Match(snap.Triples, pattern, "s")
	return ok, TierDocument, nil
}

func (r *Resolver) resolveRow(ctx context.Context, p *pass, row Row) (Row, bool) {
	for _, term := range []graph.Term{row.Triple.S, row.Triple.O} {
		if !term.IsSlot() {
			continue
		}
		if _, ok := p.bound[term.Value]; ok {
			continue
		}
		if reason, missed := p.missed[term.Value]; missed {
			p.res.Misses++
			p.res.Diagnostics = append(p.res.Diagnostics, r.miss(p.plan.Pair, row, p.lastTier[term.Value], reason))
			return Row{}, false
		}
		if !r.resolveSlot(ctx, p, term.Value) {
			p.res.Misses++
			p.res.Diagnostics = append(p.res.Diagnostics, r.miss(p.plan.Pair, row, p.lastTier[term.Value], p.missed[term.Value]))
			return Row{}, false
		}
	}
	return Row{Op: row.Op, Triple: substitute(row.Triple, p.bound)}, true
}

// resolveSlot runs the tiers for one slot and records the outcome
func (r *Resolver) resolveSlot(ctx context.Context, p *pass, key string) bool {
	if _, ok := p.missed[key]; ok {
		return false
	}

	var (
		patterns []graph.Triple
		op       graph.Op
		what     string
	)
	switch {
	case p.plan.Claims[key] != nil:
		cs := p.plan.Claims[key]
		patterns, op = cs.Patterns(p.plan.Pair.EntityID), cs.Op
		what = fmt.Sprintf("statement for %s %s", cs.Property, cs.Value)
	case p.plan.References[key] != nil:
		rs := p.plan.References[key]
		if _, ok := p.bound[rs.Claim]; !ok {
			if !r.resolveSlot(ctx, p, rs.Claim) {
				p.missed[key] = "claim of reference unresolved"
				p.lastTier[key] = p.lastTier[rs.Claim]
				return false
			}
		}
		patterns, op = rs.Patterns(), rs.Op
		what = "reference " + key
	default:
		p.missed[key] = "unknown slot"
		return false
	}

	where := make([]graph.Triple, len(patterns))
	for i, t := range patterns {
		where[i] = substitute(t, p.bound)
	}

	log := r.logger.With("entity", p.plan.Pair.EntityID, "old_rev", p.plan.Pair.OldRevID, "new_rev", p.plan.Pair.NewRevID, "slot", key)

	// tier 1: the blocks this pass already holds
	p.lastTier[key] = TierLocal
	if t, ok := Match(p.blocks.side(op), where, key); ok {
		return r.bind(p, key, t, TierLocal, log)
	}

	// tier 2: query service, a timeout or error counts as no match
	p.lastTier[key] = TierQuery
	if r.store != nil {
		qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
		t, ok, err := r.store.Select(qctx, Query{Select: key, Where: where})
		cancel()
		if err != nil {
			log.Debug("query lookup failed", "tier", TierQuery, "error", err)
		} else if ok {
			if r.canon != nil {
				t = r.canon.Term(t)
			}
			return r.bind(p, key, t, TierQuery, log)
		}
	}

	// tier 3: re-fetch the revision the change belongs to and match locally
	p.lastTier[key] = TierDocument
	if r.docs != nil {
		rev := p.plan.Pair.NewRevID
		if op == graph.OpDelete {
			rev = p.plan.Pair.OldRevID
		}
		snap, err := r.document(ctx, p, rev)
		if err != nil {
			log.Debug("document lookup failed", "tier", TierDocument, "revision", rev, "error", err)
		} else if t, ok := Match(snap.Triples, where, key); ok {
			return r.bind(p, key, t, TierDocument, log)
		}
	}

	p.missed[key] = what + " not found"
	log.Info("slot unresolved", "tier", p.lastTier[key], "what", what)
	return false
}

func (r *Resolver) bind(p *pass, key string, t graph.Term, tier int, log *slog.Logger) bool {
	p.bound[key] = t
	p.res.Resolved[tier]++
	log.Debug("slot resolved", "tier", tier, "node", t.String())
	return true
}

func (r *Resolver) document(ctx context.Context, p *pass, rev int64) (*graph.EntitySnapshot, error) {
	if snap, ok := p.docs[rev]; ok {
		return snap, nil
	}
	if rev == 0 {
		snap := graph.NewSnapshot(p.plan.Pair.EntityID, 0)
		p.docs[rev] = snap
		return snap, nil
	}
	snap, err := r.docs.Snapshot(ctx, p.plan.Pair.EntityID, rev)
	if err != nil {
		return nil, err
	}
	p.docs[rev] = snap
	return snap, nil
}

func (r *Resolver) miss(pair model.RevisionPair, row Row, tier int, reason string) model.Diagnostic {
	d := model.NewDiagnostic(model.DiagResolutionMiss, pair, row.Op.String()+" "+row.Triple.String(), reason)
	d.Tier = tier
	return d
}
