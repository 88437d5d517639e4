package dupes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// enumerateBatch is how many newly discovered files may pass between
// progress updates during enumeration.
const enumerateBatch = 5000

// enumerator walks the search roots and collects file candidates.
// Roots are walked in parallel; the candidate list and the visited set
// are shared across roots so overlapping roots are not walked twice.
type enumerator struct {
	rep *reporter

	mu         sync.Mutex
	candidates []Candidate
	visited    map[string]struct{} // directory identities, cycle guard
	seen       map[string]struct{} // candidate paths, each file counted once

	scanned atomic.Int64
}

func newEnumerator(rep *reporter) *enumerator {
	return &enumerator{
		rep:     rep,
		visited: make(map[string]struct{}),
		seen:    make(map[string]struct{}),
	}
}

// run walks all roots. A root that cannot be statted is skipped and
// counted; enumeration fails only when the context is cancelled or every
// root is invalid.
func (e *enumerator) run(ctx context.Context, roots []string) ([]Candidate, int, error) {
	var rootErrs []error

	g, gctx := errgroup.WithContext(ctx)
	for _, root := range roots {
		// Normalize so a file named both directly and through a directory
		// root resolves to one candidate path.
		if abs, absErr := filepath.Abs(root); absErr == nil {
			root = abs
		}
		info, err := os.Stat(root)
		if err != nil {
			rootErrs = append(rootErrs, &InvalidRootError{Root: root, Err: err})
			continue
		}
		if !info.IsDir() {
			// A root may name a single file.
			e.add(Candidate{Path: root, Name: strings.ToLower(info.Name()), Size: info.Size()})
			continue
		}
		g.Go(func() error {
			return e.walk(gctx, root)
		})
	}

	skipped := len(rootErrs)
	if skipped == len(roots) {
		return nil, skipped, errors.Join(rootErrs...)
	}

	if err := g.Wait(); err != nil {
		return nil, skipped, err
	}

	e.mu.Lock()
	candidates := e.candidates
	e.mu.Unlock()

	e.rep.force(StageEnumerating, e.scanned.Load(), 0,
		fmt.Sprintf("found %d files", e.scanned.Load()))
	return candidates, skipped, nil
}

// walk recurses into dir. Unreadable directories and unstatable entries
// are skipped silently: one bad file must never abort the whole search.
// Symlinked directories are not followed; the visited set additionally
// stops revisits through junctions, bind mounts and overlapping roots.
func (e *enumerator) walk(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if id, err := dirIdentity(dir); err == nil {
		if !e.markVisited(id) {
			return nil
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := e.walk(ctx, path); err != nil {
				return err
			}
			continue
		}
		// Skips symlinks, sockets, devices. DirEntry types come from
		// lstat, so a symlink to a directory lands here and is skipped,
		// which is what breaks link cycles on unix.
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		e.add(Candidate{Path: path, Name: strings.ToLower(entry.Name()), Size: info.Size()})
	}
	return nil
}

func (e *enumerator) markVisited(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.visited[id]; ok {
		return false
	}
	e.visited[id] = struct{}{}
	return true
}

// add records a candidate unless its path was already collected, which
// happens when a root names a file that another root's walk also reaches.
func (e *enumerator) add(c Candidate) {
	e.mu.Lock()
	if _, ok := e.seen[c.Path]; ok {
		e.mu.Unlock()
		return
	}
	e.seen[c.Path] = struct{}{}
	e.candidates = append(e.candidates, c)
	e.mu.Unlock()

	if n := e.scanned.Add(1); n%enumerateBatch == 0 {
		e.rep.report(StageEnumerating, n, 0, fmt.Sprintf("found %d files", n))
	}
}
