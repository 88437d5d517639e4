package dupes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// groupBatch is how many candidates are processed between cancellation
// checks and progress updates while bucketing.
const groupBatch = 4096

// bucketKey builds the cheap grouping key for a candidate. Basenames
// cannot contain a path separator, so '/' is a safe field separator.
// When only content checking is enabled every candidate shares the single
// universal key and the comparator does the whole job.
func bucketKey(c Candidate, opts Options) string {
	if !opts.BySize && !opts.ByName {
		return ""
	}
	var b strings.Builder
	if opts.BySize {
		b.WriteString(strconv.FormatInt(c.Size, 10))
	}
	if opts.ByName {
		b.WriteByte('/')
		b.WriteString(c.Name)
	}
	return b.String()
}

// groupCandidates partitions candidates into buckets keyed by the enabled
// cheap criteria and drops buckets with a single member.
func groupCandidates(ctx context.Context, rep *reporter, candidates []Candidate, opts Options) (map[string][]Candidate, error) {
	total := int64(len(candidates))
	rep.force(StageGrouping, 0, total, "grouping candidates")

	buckets := make(map[string][]Candidate)
	for i, c := range candidates {
		if i%groupBatch == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			rep.report(StageGrouping, int64(i), total,
				fmt.Sprintf("grouped %d of %d files", i, total))
		}
		key := bucketKey(c, opts)
		buckets[key] = append(buckets[key], c)
	}

	for key, members := range buckets {
		if len(members) < 2 {
			delete(buckets, key)
		}
	}

	rep.force(StageGrouping, total, total,
		fmt.Sprintf("%d buckets with two or more files", len(buckets)))
	return buckets, nil
}
