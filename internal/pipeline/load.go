package pipeline

import (
	"context"
	"fmt"

	"github.com/sinaazimii/Wikidata-tools/internal/graph"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
	"github.com/sinaazimii/Wikidata-tools/internal/snapshot"
)

// load fetches, parses and canonicalizes one revision. Revision 0 is the
// empty snapshot of an entity that did not exist yet.
func (p *Pipeline) load(ctx context.Context, entityID string, revID int64) (*graph.EntitySnapshot, []snapshot.Substitution, error) {
	if revID == 0 {
		return graph.NewSnapshot(entityID, 0), nil, nil
	}

	raw, err := p.source.FetchSnapshot(ctx, entityID, revID)
	if err != nil {
		return nil, nil, err
	}

	doc, err := snapshot.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s revision %d: %w", entityID, revID, err)
	}
	return p.canon.Snapshot(entityID, revID, doc.Triples), doc.Substitutions, nil
}

// loadSnapshot loads a revision for a pair and records BCE rewrites
func (p *Pipeline) loadSnapshot(ctx context.Context, res *PairResult, entityID string, revID int64) (*graph.EntitySnapshot, error) {
	snap, subs, err := p.load(ctx, entityID, revID)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		res.Diagnostics = append(res.Diagnostics, model.NewDiagnostic(model.DiagBCESubstitution, res.Pair, "",
			fmt.Sprintf("revision %d: %s restored from %s", revID, s.Original, s.Token)))
	}
	return snap, nil
}

// documents serves the resolver's document tier from the pipeline's source
type documents struct {
	p *Pipeline
}

func (d documents) Snapshot(ctx context.Context, entityID string, revID int64) (*graph.EntitySnapshot, error) {
	if d.p.source == nil {
		return nil, fmt.Errorf("%w: no source", model.ErrSnapshotUnavailable)
	}
	snap, _, err := d.p.load(ctx, entityID, revID)
	return snap, err
}
