package dupes

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/blake3"
)

const (
	// partialHashSize is how many bytes the head and tail pre-filter
	// digests cover. Mismatched files usually diverge within the first
	// few KiB, so most non-duplicates never reach the full hash.
	partialHashSize = 4096

	// hashChunkSize is the streaming read buffer for full-content
	// digests. Cancellation is observed between chunks, so this also
	// bounds cancellation latency on very large files.
	hashChunkSize = 1 << 20

	// hashBatch is the progress granularity while hashing.
	hashBatch = 500
)

var hashBufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, hashChunkSize)
		return &buf
	},
}

// bucket is a set of same-size candidates pending content confirmation.
// digest holds the result of the most recent hashing stage.
type bucket struct {
	size    int64
	digest  string
	members []Candidate
}

// comparator confirms true duplicates inside cheap-key buckets through
// three hashing stages: head (xxhash64 of the first 4 KiB), tail
// (xxhash64 of the last 4 KiB) and full content (blake3). Each stage
// only runs on buckets that survived the previous one.
type comparator struct {
	rep     *reporter
	workers int

	hashed  atomic.Int64
	skipped atomic.Int64
}

// confirm splits each bucket by actual content and returns the final
// duplicate groups. Per-file read errors drop that file and continue.
func (cp *comparator) confirm(ctx context.Context, buckets map[string][]Candidate) ([]Group, error) {
	pending := splitBySize(buckets)
	if len(pending) == 0 {
		return nil, nil
	}

	pending, err := cp.splitByDigest(ctx, pending, "comparing file heads", func(_ context.Context, c Candidate) (string, error) {
		return hashPartial(c.Path, partialHashSize, false)
	})
	if err != nil {
		return nil, err
	}

	pending, err = cp.splitByDigest(ctx, pending, "comparing file tails", func(_ context.Context, c Candidate) (string, error) {
		if c.Size <= partialHashSize {
			// The head digest already covered the whole file.
			return "head", nil
		}
		return hashPartial(c.Path, partialHashSize, true)
	})
	if err != nil {
		return nil, err
	}

	confirmed, err := cp.splitByDigest(ctx, pending, "comparing full contents", hashFull)
	if err != nil {
		return nil, err
	}

	groups := make([]Group, 0, len(confirmed))
	for _, b := range confirmed {
		paths := make([]string, len(b.members))
		for i, c := range b.members {
			paths[i] = c.Path
		}
		groups = append(groups, Group{Size: b.size, Digest: b.digest, Paths: paths})
	}
	return groups, nil
}

// splitBySize partitions every bucket by exact byte size before any I/O
// happens. Content-equal files are always size-equal, so this is free and
// keeps files of unique size away from the hashing stages entirely.
func splitBySize(buckets map[string][]Candidate) []bucket {
	var out []bucket
	for _, members := range buckets {
		bySize := make(map[int64][]Candidate)
		for _, c := range members {
			bySize[c.Size] = append(bySize[c.Size], c)
		}
		for size, same := range bySize {
			if len(same) < 2 {
				continue
			}
			out = append(out, bucket{size: size, members: same})
		}
	}
	return out
}

type digestFunc func(ctx context.Context, c Candidate) (string, error)

// splitByDigest hashes every member of every bucket with fn on a bounded
// worker pool and re-buckets by (bucket, digest). Sub-buckets that fall to
// a single member are dropped; so are files whose digest fails.
func (cp *comparator) splitByDigest(ctx context.Context, in []bucket, label string, fn digestFunc) ([]bucket, error) {
	total := int64(0)
	for _, b := range in {
		total += int64(len(b.members))
	}
	if total == 0 {
		return nil, nil
	}
	cp.rep.force(StageHashing, 0, total, label)

	var (
		mu   sync.Mutex
		next = make(map[string]*bucket)
		done atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cp.workers)
	for i, b := range in {
		for _, c := range b.members {
			idx, size, cand := i, b.size, c
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				digest, err := fn(gctx, cand)
				n := done.Add(1)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					// Transient read failure: drop this file only.
					cp.skipped.Add(1)
					return nil
				}
				cp.hashed.Add(1)

				key := strconv.Itoa(idx) + "|" + digest
				mu.Lock()
				sub := next[key]
				if sub == nil {
					sub = &bucket{size: size, digest: digest}
					next[key] = sub
				}
				sub.members = append(sub.members, cand)
				mu.Unlock()

				if n%hashBatch == 0 || n == total {
					cp.rep.report(StageHashing, n, total,
						fmt.Sprintf("%s: %s", label, filepath.Base(cand.Path)))
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]bucket, 0, len(next))
	for _, sub := range next {
		if len(sub.members) < 2 {
			continue
		}
		out = append(out, *sub)
	}
	return out, nil
}

// hashPartial digests up to limit bytes from the start of the file, or
// from its end when fromEnd is set. xxhash64 is used here purely as a
// cheap pre-filter; the final grouping digest is always blake3.
func hashPartial(path string, limit int64, fromEnd bool) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if fromEnd {
		info, err := f.Stat()
		if err != nil {
			return "", err
		}
		if info.Size() > limit {
			if _, err := f.Seek(-limit, io.SeekEnd); err != nil {
				return "", err
			}
		}
	}

	h := xxhash.New()
	if _, err := io.Copy(h, io.LimitReader(f, limit)); err != nil {
		return "", err
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}

// hashFull streams the whole file through blake3 with a fixed-size buffer,
// checking for cancellation between chunks so a huge file cannot pin a
// cancelled search.
func hashFull(ctx context.Context, c Candidate) (string, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	bufp := hashBufPool.Get().(*[]byte)
	defer hashBufPool.Put(bufp)
	buf := *bufp

	h := blake3.New(32, nil)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
