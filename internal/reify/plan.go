package reify

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/sinaazimii/Wikidata-tools/internal/graph"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
	"github.com/sinaazimii/Wikidata-tools/internal/snapshot"
)

const (
	claimSlotPrefix = "c"
	refSlotPrefix   = "r"
)

// ClaimSlot stands for the statement node of (entity, property, value)
// in one revision of the pair
type ClaimSlot struct {
	Key      string
	Property string
	Value    graph.Term
	Op       graph.Op // OpDelete looks in the old revision, OpInsert in the new
}

// Patterns returns the graph patterns that identify the statement node
func (s *ClaimSlot) Patterns(entityID string) []graph.Triple {
	c := graph.Slot(s.Key)
	return []graph.Triple{
		graph.T(graph.Name("wd:"+entityID), graph.Name("p:"+s.Property), c),
		graph.T(c, graph.Name("ps:"+s.Property), s.Value),
	}
}

// ReferenceSlot stands for a reference node attached to a claim. Key is a
// provisional content key; the real node id is only known after resolution.
type ReferenceSlot struct {
	Key   string
	Claim string // claim slot key
	Snaks []graph.Triple
	Op    graph.Op
}

// Patterns returns the graph patterns that identify the reference node once
// its claim is bound
func (s *ReferenceSlot) Patterns() []graph.Triple {
	r := graph.Slot(s.Key)
	out := []graph.Triple{graph.T(graph.Slot(s.Claim), wasDerivedFrom, r)}
	return append(out, s.Snaks...)
}

// Plan is the rendered-diff form of one revision pair: rows in document
// order plus the slots they reference
type Plan struct {
	Pair        model.RevisionPair
	Rows        []Row
	Claims      map[string]*ClaimSlot
	References  map[string]*ReferenceSlot
	Diagnostics []model.Diagnostic
}

// ReferenceKey derives the provisional content key of a reference from its
// (property, value) pairs. Order of the pairs does not matter.
func ReferenceKey(snaks []graph.Triple) string {
	parts := make([]string, 0, len(snaks))
	for _, s := range snaks {
		parts = append(parts, s.P.String()+"\x00"+s.O.String())
	}
	sort.Strings(parts)
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0x01})
	}
	return refSlotPrefix + hex.EncodeToString(h.Sum(nil))[:16]
}

var termPredicates = map[string][]graph.Term{
	"label":       {graph.Name("rdfs:label"), graph.Name("skos:prefLabel"), graph.Name("schema:name")},
	"description": {graph.Name("schema:description")},
	"aliases":     {graph.Name("skos:altLabel")},
}

// planBuilder carries the state of one BuildPlan call
type planBuilder struct {
	plan      *Plan
	entity    graph.Term
	claimKeys map[string]string
	refCount  map[string]int
}

// BuildPlan turns rendered-diff rows into slot rows. A claim block that has
// both removed and added values is a value change on one statement; a block
// with one side only adds or removes the whole statement.
func BuildPlan(pair model.RevisionPair, rows []snapshot.CompareRow) *Plan {
	b := &planBuilder{
		plan: &Plan{
			Pair:       pair,
			Claims:     make(map[string]*ClaimSlot),
			References: make(map[string]*ReferenceSlot),
		},
		entity:    graph.Name("wd:" + pair.EntityID),
		claimKeys: make(map[string]string),
		refCount:  make(map[string]int),
	}

	for _, block := range blocks(rows) {
		switch block[0].Section {
		case snapshot.SectionTerm:
			b.terms(block)
		case snapshot.SectionClaim:
			b.claims(block)
		case snapshot.SectionRank:
			b.ranks(block)
		case snapshot.SectionQualifier:
			b.qualifiers(block)
		case snapshot.SectionReference:
			b.references(block)
		}
	}
	return b.plan
}

// blocks splits rows into runs sharing the same header
func blocks(rows []snapshot.CompareRow) [][]snapshot.CompareRow {
	var out [][]snapshot.CompareRow
	for i, r := range rows {
		if i == 0 || !sameHeader(r.Header, rows[i-1].Header) {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], r)
	}
	return out
}

func sameHeader(a, b snapshot.Header) bool {
	return a.Section == b.Section && a.Property == b.Property && a.Lang == b.Lang &&
		a.Claim.Kind == b.Claim.Kind && a.Claim.Value == b.Claim.Value &&
		a.Claim.Lang == b.Claim.Lang && a.Claim.Datatype == b.Claim.Datatype
}

func (b *planBuilder) emit(op graph.Op, t graph.Triple) {
	b.plan.Rows = append(b.plan.Rows, Row{Op: op, Triple: t})
}

func (b *planBuilder) diag(kind model.DiagnosticKind, triple string, format string, args ...any) {
	b.plan.Diagnostics = append(b.plan.Diagnostics, model.NewDiagnostic(kind, b.plan.Pair, triple, fmt.Sprintf(format, args...)))
}

func (b *planBuilder) term(o snapshot.ObjectRef, property string) (graph.Term, bool) {
	t, err := o.Term()
	if err != nil {
		b.diag(model.DiagFormatError, "", "%s value %q: %v", property, o.Value, err)
		return graph.Term{}, false
	}
	return t, true
}

// claimSlot returns the slot for (property, value) on one side, sharing it
// between rows that name the same claim
func (b *planBuilder) claimSlot(property string, value graph.Term, op graph.Op) graph.Term {
	id := fmt.Sprintf("%s\x00%s\x00%d", property, value.String(), op)
	if key, ok := b.claimKeys[id]; ok {
		return graph.Slot(key)
	}
	key := fmt.Sprintf("%s%d", claimSlotPrefix, len(b.claimKeys)+1)
	b.claimKeys[id] = key
	b.plan.Claims[key] = &ClaimSlot{Key: key, Property: property, Value: value, Op: op}
	return graph.Slot(key)
}

func (b *planBuilder) terms(block []snapshot.CompareRow) {
	for _, r := range block {
		preds, ok := termPredicates[r.Property]
		if !ok {
			continue
		}
		obj := graph.LangString(r.Object.Value, r.Lang)
		for _, p := range preds {
			b.emit(r.Op, graph.T(b.entity, p, obj))
		}
	}
}

func (b *planBuilder) claims(block []snapshot.CompareRow) {
	var dels, ins []snapshot.CompareRow
	for _, r := range block {
		if r.Op == graph.OpDelete {
			dels = append(dels, r)
		} else {
			ins = append(ins, r)
		}
	}

	// paired values change the main value of one statement, which keeps its id
	n := min(len(dels), len(ins))
	for i := 0; i < n; i++ {
		p := dels[i].Property
		oldV, ok1 := b.term(dels[i].Object, p)
		newV, ok2 := b.term(ins[i].Object, p)
		if !ok1 || !ok2 {
			continue
		}
		c := b.claimSlot(p, oldV, graph.OpDelete)
		b.emit(graph.OpDelete, graph.T(c, graph.Name("ps:"+p), oldV))
		b.emit(graph.OpInsert, graph.T(c, graph.Name("ps:"+p), newV))
	}

	for _, r := range append(dels[n:], ins[n:]...) {
		v, ok := b.term(r.Object, r.Property)
		if !ok {
			continue
		}
		c := b.claimSlot(r.Property, v, r.Op)
		b.emit(r.Op, graph.T(b.entity, graph.Name("p:"+r.Property), c))
		b.emit(r.Op, graph.T(c, typePredicate, statementType))
		b.emit(r.Op, graph.T(c, graph.Name("ps:"+r.Property), v))
	}
}

func (b *planBuilder) headerClaim(r snapshot.CompareRow) (graph.Term, bool) {
	v, ok := b.term(r.Claim, r.Property)
	if !ok {
		return graph.Term{}, false
	}
	return b.claimSlot(r.Property, v, r.Op), true
}

func (b *planBuilder) ranks(block []snapshot.CompareRow) {
	for _, r := range block {
		rank, ok := Rank(r.Object.Value)
		if !ok {
			b.diag(model.DiagFormatError, "", "%s: unknown rank %q", r.Property, r.Object.Value)
			continue
		}
		c, ok := b.headerClaim(r)
		if !ok {
			continue
		}
		b.emit(r.Op, graph.T(c, rankPredicate, rank))
	}
}

func (b *planBuilder) qualifiers(block []snapshot.CompareRow) {
	for _, r := range block {
		c, ok := b.headerClaim(r)
		if !ok {
			continue
		}
		for _, s := range r.Object.Snaks {
			v, ok := b.term(s.Value, s.Property)
			if !ok {
				continue
			}
			b.emit(r.Op, graph.T(c, graph.Name("pq:"+s.Property), v))
		}
	}
}

func (b *planBuilder) references(block []snapshot.CompareRow) {
	for _, r := range block {
		c, ok := b.headerClaim(r)
		if !ok {
			continue
		}

		var snaks []graph.Triple
		for _, s := range r.Object.Snaks {
			v, ok := b.term(s.Value, s.Property)
			if !ok {
				continue
			}
			snaks = append(snaks, graph.T(graph.Term{}, graph.Name("pr:"+s.Property), v))
		}
		if len(snaks) == 0 {
			continue
		}

		key := ReferenceKey(snaks)
		ref := graph.Slot(key)
		for i := range snaks {
			snaks[i].S = ref
		}
		if _, seen := b.plan.References[key]; !seen {
			b.plan.References[key] = &ReferenceSlot{Key: key, Claim: c.Value, Snaks: snaks, Op: r.Op}
		}

		group := fmt.Sprintf("%s\x00%d", c.Value, r.Op)
		b.refCount[group]++
		if b.refCount[group] == 2 {
			claim := b.plan.Claims[c.Value]
			b.diag(model.DiagAmbiguous, "", "%s claim %s has more than one changed reference; each is resolved on its own",
				r.Property, claim.Value.String())
		}

		b.emit(r.Op, graph.T(c, wasDerivedFrom, ref))
		if r.Op == graph.OpDelete {
			// reference nodes are shared between statements citing the same
			// source; the body goes only once the resolver finds it unlinked
			continue
		}
		for _, s := range snaks {
			b.emit(r.Op, s)
		}
	}
}
