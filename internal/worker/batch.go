package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sinaazimii/Wikidata-tools/internal/model"
)

// PairHandler processes one revision pair
type PairHandler interface {
	HandlePair(ctx context.Context, pair model.RevisionPair) Result
}

// PairJob runs one revision pair through a handler
type PairJob struct {
	Pair    model.RevisionPair
	Handler PairHandler
}

func (j *PairJob) Execute(ctx context.Context) Result {
	return j.Handler.HandlePair(ctx, j.Pair)
}

// BatchProcessor runs revision pairs on a bounded pool. Pairs share no
// mutable state, so any number of them may run at once.
type BatchProcessor struct {
	handler     PairHandler
	concurrency int
	onResult    func(Result)
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(handler PairHandler, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		handler:     handler,
		concurrency: concurrency,
	}
}

// OnResult registers a callback invoked as each pair finishes, in completion
// order. It may be called from several goroutines at once.
func (b *BatchProcessor) OnResult(fn func(Result)) *BatchProcessor {
	b.onResult = fn
	return b
}

// ProcessPairs processes the pairs and returns their results in input order
// along with the number of failed pairs. Pairs never started because ctx was
// cancelled have a nil result and count as failed.
func (b *BatchProcessor) ProcessPairs(ctx context.Context, pairs []model.RevisionPair) ([]Result, int) {
	if len(pairs) == 0 {
		return []Result{}, 0
	}

	collector := NewResultCollector()
	handler := observed{next: b.handler, collector: collector, fn: b.onResult}

	pool := NewPool(ctx, min(b.concurrency, len(pairs)))
	pool.Start()
	for _, pair := range pairs {
		pool.Submit(&PairJob{Pair: pair, Handler: handler})
	}
	results := pool.Wait()
	failed := collector.Failed()
	for _, r := range results {
		if r == nil {
			failed++
		}
	}
	return results, failed
}

type observed struct {
	next      PairHandler
	collector *ResultCollector
	fn        func(Result)
}

func (o observed) HandlePair(ctx context.Context, pair model.RevisionPair) Result {
	res := o.next.HandlePair(ctx, pair)
	o.collector.Add(res)
	if o.fn != nil {
		o.fn(res)
	}
	return res
}

// ReadPairsFromFile reads revision pairs, one per line, as
// "<entity> <old-rev> <new-rev>". Fields may also be separated by commas or
// tabs. Blank lines and lines starting with '#' are skipped, duplicates are
// dropped.
func ReadPairsFromFile(filePath string) ([]model.RevisionPair, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var pairs []model.RevisionPair
	seen := make(map[model.RevisionPair]bool)

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pair, err := ParsePair(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if !seen[pair] {
			seen[pair] = true
			pairs = append(pairs, pair)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return pairs, nil
}

// ParsePair parses "<entity> <old-rev> <new-rev>"
func ParsePair(line string) (model.RevisionPair, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
	if len(fields) != 3 {
		return model.RevisionPair{}, fmt.Errorf("expected <entity> <old-rev> <new-rev>, got %q", line)
	}

	oldRev, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return model.RevisionPair{}, fmt.Errorf("old revision %q: %w", fields[1], err)
	}
	newRev, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return model.RevisionPair{}, fmt.Errorf("new revision %q: %w", fields[2], err)
	}

	pair := model.RevisionPair{EntityID: fields[0], OldRevID: oldRev, NewRevID: newRev, Kind: model.ChangeEdit}
	if oldRev == 0 {
		pair.Kind = model.ChangeNew
	}
	if err := pair.Validate(); err != nil {
		return model.RevisionPair{}, err
	}
	return pair, nil
}
