package dupes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

// Engine runs duplicate searches. It holds only tuning parameters and is
// safe for reuse; serializing concurrent searches is the caller's job.
type Engine struct {
	workers int
	emitGap time.Duration
}

// NewEngine creates an engine. hashWorkers bounds content-hashing
// parallelism; emitGap is the minimum interval between throttled progress
// emissions. Zero values pick defaults.
func NewEngine(hashWorkers int, emitGap time.Duration) *Engine {
	if hashWorkers <= 0 {
		hashWorkers = 4
	}
	if emitGap <= 0 {
		emitGap = 100 * time.Millisecond
	}
	return &Engine{workers: hashWorkers, emitGap: emitGap}
}

// Find enumerates req.Roots, buckets candidates by the enabled cheap
// criteria and, when content checking is on, confirms true duplicates by
// staged hashing. Groups come back with members sorted by path and groups
// sorted by size, largest first.
//
// Cancellation is cooperative: the context is polled at directory, file
// and read-chunk granularity, and a cancelled search returns ctx.Err()
// with no partial result. When content checking is off the returned
// groups are approximate: same size and/or name only.
func (e *Engine) Find(ctx context.Context, req Request, emit EmitFunc) (*Result, error) {
	if len(req.Roots) == 0 {
		return nil, ErrNoRoots
	}
	if !req.Options.enabled() {
		return nil, ErrNoCriteria
	}

	rep := newReporter(emit, e.emitGap)
	rep.force(StageEnumerating, 0, 0, "starting search")

	en := newEnumerator(rep)
	candidates, rootsSkipped, err := en.run(ctx, req.Roots)
	if err != nil {
		return nil, err
	}

	stats := Stats{
		FilesScanned: en.scanned.Load(),
		Candidates:   int64(len(candidates)),
		RootsSkipped: rootsSkipped,
	}

	buckets, err := groupCandidates(ctx, rep, candidates, req.Options)
	if err != nil {
		return nil, err
	}

	var groups []Group
	if req.Options.ByContent {
		cp := &comparator{rep: rep, workers: e.workers}
		groups, err = cp.confirm(ctx, buckets)
		if err != nil {
			return nil, err
		}
		stats.FilesHashed = cp.hashed.Load()
		stats.FilesSkipped = cp.skipped.Load()
	} else {
		// Cheap-key buckets are the final answer here. Size is only
		// meaningful per group when the size criterion was part of the key.
		for _, members := range buckets {
			var size int64
			if req.Options.BySize {
				size = members[0].Size
			}
			paths := make([]string, len(members))
			for i, c := range members {
				paths[i] = c.Path
			}
			groups = append(groups, Group{Size: size, Paths: paths})
		}
	}

	rep.force(StageFinalizing, 0, int64(len(groups)), "sorting results")
	for i := range groups {
		sort.Strings(groups[i].Paths)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Size != groups[j].Size {
			return groups[i].Size > groups[j].Size
		}
		return groups[i].Paths[0] < groups[j].Paths[0]
	})

	for _, g := range groups {
		stats.WastedBytes += g.Size * int64(len(g.Paths)-1)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep.force(StageFinalizing, int64(len(groups)), int64(len(groups)),
		fmt.Sprintf("%d duplicate groups, %s wasted", len(groups), humanize.Bytes(uint64(stats.WastedBytes))))

	return &Result{Groups: groups, Stats: stats}, nil
}
