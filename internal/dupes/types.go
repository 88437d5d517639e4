// Package dupes implements the duplicate-file search engine: enumeration
// of root paths, cheap-key bucketing by size/name, and content confirmation
// via staged hashing. A search is a single cancellable unit of work; all
// intermediate state is owned by one Find call and dropped when it returns.
package dupes

// Options selects the equality criteria used to group files.
type Options struct {
	ByName    bool
	BySize    bool
	ByContent bool
}

// enabled reports whether at least one criterion is set.
func (o Options) enabled() bool {
	return o.ByName || o.BySize || o.ByContent
}

// Request describes one duplicate search.
type Request struct {
	Roots   []string
	Options Options
}

// Candidate is a regular file considered for grouping. Immutable once
// captured during enumeration.
type Candidate struct {
	Path string
	Name string // normalized lowercase basename
	Size int64
}

// Group is a set of files that satisfied every enabled criterion.
// Digest is the hex blake3 of the full content when content checking ran,
// empty otherwise. Size is 0 for name-only searches where members may
// differ in size.
type Group struct {
	Size   int64
	Digest string
	Paths  []string
}

// Stats summarizes one completed search.
type Stats struct {
	FilesScanned int64 // files seen during enumeration
	Candidates   int64 // files kept for grouping
	FilesHashed  int64 // digests computed across all hashing stages
	FilesSkipped int64 // files dropped due to read errors
	RootsSkipped int   // supplied roots that were missing or unreadable
	WastedBytes  int64 // redundant bytes across all groups
}

// Result is the outcome of a successful search.
type Result struct {
	Groups []Group
	Stats  Stats
}
