package dupes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"
)

// writeFile creates a file with the given content under dir, creating
// parent directories as needed.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func find(t *testing.T, req Request) *Result {
	t.Helper()
	result, err := NewEngine(2, time.Millisecond).Find(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	return result
}

// groupPaths flattens groups to sorted path slices for set comparison.
func groupPaths(groups []Group) [][]string {
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		paths := append([]string(nil), g.Paths...)
		sort.Strings(paths)
		out = append(out, paths)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func TestFindBySizeAndContent(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()

	// 100-byte files: x and y share content, z only shares the size.
	contentA := string(make([]byte, 99)) + "A"
	contentB := string(make([]byte, 99)) + "B"
	x := writeFile(t, a, "x.txt", contentA)
	y := writeFile(t, b, "y.txt", contentA)
	writeFile(t, a, "z.txt", contentB)

	result := find(t, Request{
		Roots:   []string{a, b},
		Options: Options{BySize: true, ByContent: true},
	})

	if len(result.Groups) != 1 {
		t.Fatalf("got %d groups, want 1: %+v", len(result.Groups), result.Groups)
	}
	g := result.Groups[0]
	if g.Size != 100 {
		t.Errorf("group size = %d, want 100", g.Size)
	}
	if g.Digest == "" {
		t.Error("content-confirmed group has empty digest")
	}
	want := []string{x, y}
	sort.Strings(want)
	if !reflect.DeepEqual(g.Paths, want) {
		t.Errorf("group paths = %v, want %v", g.Paths, want)
	}
}

func TestFindBySizeOnlyGroupsDifferentContent(t *testing.T) {
	// Without a content check, equal size is accepted as sufficient
	// evidence. Two same-size files with different bytes group together;
	// that is the documented weaker guarantee, not a bug.
	dir := t.TempDir()
	writeFile(t, dir, "one.bin", "aaaaaaaa")
	writeFile(t, dir, "two.bin", "bbbbbbbb")

	result := find(t, Request{
		Roots:   []string{dir},
		Options: Options{BySize: true},
	})

	if len(result.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(result.Groups))
	}
	if n := len(result.Groups[0].Paths); n != 2 {
		t.Errorf("group has %d members, want 2", n)
	}
	if result.Groups[0].Digest != "" {
		t.Error("approximate group must not carry a content digest")
	}
}

func TestFindByContentSplitsSameSize(t *testing.T) {
	// Same size, different content, content checking on: never grouped.
	dir := t.TempDir()
	writeFile(t, dir, "one.bin", "aaaaaaaa")
	writeFile(t, dir, "two.bin", "bbbbbbbb")

	result := find(t, Request{
		Roots:   []string{dir},
		Options: Options{BySize: true, ByContent: true},
	})

	if len(result.Groups) != 0 {
		t.Fatalf("got %d groups, want 0: %+v", len(result.Groups), result.Groups)
	}
}

func TestFindByContentOnlyUsesUniversalBucket(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a/copy1.dat", "same content here")
	writeFile(t, dir, "b/copy2.dat", "same content here")
	writeFile(t, dir, "c/other.dat", "different bytes!!!")

	result := find(t, Request{
		Roots:   []string{dir},
		Options: Options{ByContent: true},
	})

	if len(result.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(result.Groups))
	}
	if n := len(result.Groups[0].Paths); n != 2 {
		t.Errorf("group has %d members, want 2", n)
	}
}

func TestFindByNameIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a/Report.PDF", "first")
	writeFile(t, dir, "b/report.pdf", "second, longer content")
	writeFile(t, dir, "c/notes.txt", "unrelated")

	result := find(t, Request{
		Roots:   []string{dir},
		Options: Options{ByName: true},
	})

	if len(result.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(result.Groups))
	}
	g := result.Groups[0]
	if len(g.Paths) != 2 {
		t.Errorf("group has %d members, want 2", len(g.Paths))
	}
	// Members differ in size, so the group size is unknown.
	if g.Size != 0 {
		t.Errorf("name-only group size = %d, want 0", g.Size)
	}
}

func TestFindEveryGroupHasTwoOrMoreMembers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "unique1.txt", "one")
	writeFile(t, dir, "unique2.txt", "three")
	writeFile(t, dir, "pair1.txt", "same same")
	writeFile(t, dir, "pair2.txt", "same same")

	result := find(t, Request{
		Roots:   []string{dir},
		Options: Options{BySize: true, ByContent: true},
	})

	for _, g := range result.Groups {
		if len(g.Paths) < 2 {
			t.Errorf("group %v has fewer than 2 members", g.Paths)
		}
	}
	if len(result.Groups) != 1 {
		t.Errorf("got %d groups, want 1", len(result.Groups))
	}
}

func TestFindIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a/f1", "duplicate payload")
	writeFile(t, dir, "b/f2", "duplicate payload")
	writeFile(t, dir, "c/f3", "duplicate payload")
	writeFile(t, dir, "d/solo", "one of a kind")

	req := Request{Roots: []string{dir}, Options: Options{BySize: true, ByContent: true}}

	first := find(t, req)
	second := find(t, req)

	if !reflect.DeepEqual(groupPaths(first.Groups), groupPaths(second.Groups)) {
		t.Errorf("group membership differs across runs:\n%v\nvs\n%v",
			groupPaths(first.Groups), groupPaths(second.Groups))
	}
}

func TestFindGroupsSortedBySizeDescending(t *testing.T) {
	dir := t.TempDir()
	big := string(make([]byte, 4000))
	small := "tiny"
	writeFile(t, dir, "big1", big)
	writeFile(t, dir, "big2", big)
	writeFile(t, dir, "small1", small)
	writeFile(t, dir, "small2", small)

	result := find(t, Request{
		Roots:   []string{dir},
		Options: Options{BySize: true, ByContent: true},
	})

	if len(result.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(result.Groups))
	}
	if result.Groups[0].Size < result.Groups[1].Size {
		t.Errorf("groups not sorted by size descending: %d before %d",
			result.Groups[0].Size, result.Groups[1].Size)
	}
	if result.Stats.WastedBytes != 4000+4 {
		t.Errorf("WastedBytes = %d, want %d", result.Stats.WastedBytes, 4000+4)
	}
}

func TestFindValidation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"no roots", Request{Options: Options{BySize: true}}, ErrNoRoots},
		{"no criteria", Request{Roots: []string{dir}}, ErrNoCriteria},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(0, 0).Find(context.Background(), tt.req, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Find error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFindSkipsInvalidRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f1", "pair")
	writeFile(t, dir, "f2", "pair")
	missing := filepath.Join(dir, "does-not-exist")

	result := find(t, Request{
		Roots:   []string{missing, dir},
		Options: Options{BySize: true, ByContent: true},
	})

	if result.Stats.RootsSkipped != 1 {
		t.Errorf("RootsSkipped = %d, want 1", result.Stats.RootsSkipped)
	}
	if len(result.Groups) != 1 {
		t.Errorf("got %d groups, want 1 from the valid root", len(result.Groups))
	}
}

func TestFindFailsWhenAllRootsInvalid(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := NewEngine(0, 0).Find(context.Background(), Request{
		Roots:   []string{missing},
		Options: Options{BySize: true},
	}, nil)

	var rootErr *InvalidRootError
	if !errors.As(err, &rootErr) {
		t.Fatalf("Find error = %v, want InvalidRootError", err)
	}
	if rootErr.Root != missing {
		t.Errorf("InvalidRootError.Root = %q, want %q", rootErr.Root, missing)
	}
}

func TestFindCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f1", "pair")
	writeFile(t, dir, "f2", "pair")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewEngine(0, 0).Find(ctx, Request{
		Roots:   []string{dir},
		Options: Options{BySize: true, ByContent: true},
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Find error = %v, want context.Canceled", err)
	}
	if result != nil {
		t.Error("cancelled search must not return a partial result")
	}
}

func TestFindSymlinkCycleTerminates(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires elevation on windows")
	}

	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, sub, "f1", "pair")
	writeFile(t, sub, "f2", "pair")
	// Link back up to the root: following it would recurse forever.
	if err := os.Symlink(dir, filepath.Join(sub, "loop")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	done := make(chan *Result, 1)
	go func() {
		done <- find(t, Request{
			Roots:   []string{dir},
			Options: Options{BySize: true, ByContent: true},
		})
	}()

	select {
	case result := <-done:
		if len(result.Groups) != 1 {
			t.Fatalf("got %d groups, want 1", len(result.Groups))
		}
		// Each file must be seen exactly once, not again through the link.
		if n := len(result.Groups[0].Paths); n != 2 {
			t.Errorf("group has %d members, want 2", n)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("enumeration did not terminate with a symlink cycle present")
	}
}

func TestFindOverlappingRootsDeduplicated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f1", "pair")
	writeFile(t, dir, "f2", "pair")

	// The same tree supplied twice must not double-count files.
	result := find(t, Request{
		Roots:   []string{dir, dir},
		Options: Options{BySize: true, ByContent: true},
	})

	if len(result.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(result.Groups))
	}
	if n := len(result.Groups[0].Paths); n != 2 {
		t.Errorf("group has %d members, want 2", n)
	}
}

func TestFindFileRootsDeduplicated(t *testing.T) {
	dir := t.TempDir()
	x := writeFile(t, dir, "x.txt", "same content")
	y := writeFile(t, dir, "y.txt", "same content")

	// A file named directly as a root and also reached through a directory
	// root is one candidate, not two copies of the same path.
	result := find(t, Request{
		Roots:   []string{dir, x},
		Options: Options{BySize: true, ByContent: true},
	})
	if len(result.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(result.Groups))
	}
	want := []string{x, y}
	sort.Strings(want)
	if !reflect.DeepEqual(result.Groups[0].Paths, want) {
		t.Errorf("group paths = %v, want %v", result.Groups[0].Paths, want)
	}
	if result.Stats.FilesScanned != 2 {
		t.Errorf("files scanned = %d, want 2", result.Stats.FilesScanned)
	}

	// The same file root listed twice is one candidate, so it cannot pair
	// with itself.
	result = find(t, Request{
		Roots:   []string{x, x},
		Options: Options{BySize: true, ByContent: true},
	})
	if len(result.Groups) != 0 {
		t.Fatalf("got %d groups for a single file, want 0", len(result.Groups))
	}
}

func TestFindSkipsUnreadableFiles(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced the same way on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("running as root, permissions are not enforced")
	}

	dir := t.TempDir()
	writeFile(t, dir, "ok1", "readable pair")
	writeFile(t, dir, "ok2", "readable pair")
	locked := writeFile(t, dir, "locked", "readable pair")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0o644) })

	result := find(t, Request{
		Roots:   []string{dir},
		Options: Options{BySize: true, ByContent: true},
	})

	if result.Stats.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1", result.Stats.FilesSkipped)
	}
	if len(result.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(result.Groups))
	}
	if n := len(result.Groups[0].Paths); n != 2 {
		t.Errorf("group has %d members, want 2 (unreadable file dropped)", n)
	}
}

func TestFindEmitsStagedProgress(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f1", "pair")
	writeFile(t, dir, "f2", "pair")

	var (
		mu     sync.Mutex
		events []Progress
	)
	_, err := NewEngine(1, time.Nanosecond).Find(context.Background(), Request{
		Roots:   []string{dir},
		Options: Options{BySize: true, ByContent: true},
	}, func(p Progress) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	seen := map[string]bool{}
	for _, p := range events {
		seen[p.Stage] = true
	}
	for _, stage := range []string{StageEnumerating, StageGrouping, StageHashing, StageFinalizing} {
		if !seen[stage] {
			t.Errorf("no progress event for stage %q", stage)
		}
	}
}
