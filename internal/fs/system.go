package fs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/justyntemme/filetree/internal/debug"
	"github.com/justyntemme/filetree/internal/metrics"
)

type OpType int

const (
	FetchDir OpType = iota
)

// Kind discriminates directory entries from file entries.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "dir"
	}
	return "file"
}

type Entry struct {
	Name    string
	Path    string
	Kind    Kind
	Size    int64
	ModTime time.Time
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Kind == KindDirectory }

// Listing is the sorted content of one directory.
type Listing struct {
	Path    string
	Entries []Entry
}

type Request struct {
	Op      OpType
	Path    string
	Compact bool   // Also list through single-subdirectory chains
	Gen     uint64 // Expansion sequence number, echoed back
	Token   string // Opaque owner token (tree ID), echoed back
	Index   uint32 // Node slot the listing is for, echoed back
}

type Response struct {
	Op       OpType
	Path     string
	Listings []Listing // Listings[0] is Path itself, the rest follow the chain
	Gen      uint64
	Token    string
	Index    uint32
}

// Entries returns the listing of the requested path.
func (r Response) Entries() []Entry {
	if len(r.Listings) == 0 {
		return nil
	}
	return r.Listings[0].Entries
}

// System lists directories on a pool of worker goroutines. Requests go in
// on RequestChan, responses come back on ResponseChan in completion order.
type System struct {
	RequestChan  chan Request
	ResponseChan chan Response
	Workers      int
	Options      Options

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewSystem(workers int, opts Options) *System {
	if workers <= 0 {
		workers = 4
	}
	return &System{
		RequestChan:  make(chan Request, 64),
		ResponseChan: make(chan Response, 64),
		Workers:      workers,
		Options:      opts,
	}
}

// Start runs the worker pool and blocks until Stop is called and all
// queued requests are answered.
func (s *System) Start() {
	for i := 0; i < s.Workers; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.work(id)
		}(i)
	}
	s.wg.Wait()
	close(s.ResponseChan)
}

func (s *System) work(id int) {
	for req := range s.RequestChan {
		debug.Log(debug.FS, "worker %d: op=%d path=%q compact=%v gen=%d", id, req.Op, req.Path, req.Compact, req.Gen)

		switch req.Op {
		case FetchDir:
			start := time.Now()
			listings := ListChain(req.Path, req.Compact, s.Options)
			metrics.ListingDuration.Observe(time.Since(start).Seconds())
			metrics.ListingsTotal.Add(float64(len(listings)))

			debug.Log(debug.FS, "worker %d: FetchDir response: path=%q levels=%d", id, req.Path, len(listings))
			s.ResponseChan <- Response{
				Op:       FetchDir,
				Path:     req.Path,
				Listings: listings,
				Gen:      req.Gen,
				Token:    req.Token,
				Index:    req.Index,
			}
		}
	}
}

// Submit queues a request for the worker pool.
func (s *System) Submit(req Request) {
	s.RequestChan <- req
}

// Stop closes the request channel. Start returns once in-flight work drains.
func (s *System) Stop() {
	s.stopOnce.Do(func() { close(s.RequestChan) })
}

// maxChain bounds compaction so a symlink pointing at its own parent
// cannot descend forever.
const maxChain = 64

// ListChain lists path and, when compact is set, keeps listing while the
// latest listing holds exactly one entry and that entry is a directory.
func ListChain(path string, compact bool, opts Options) []Listing {
	listings := []Listing{{Path: path, Entries: List(path, opts)}}
	if !compact {
		return listings
	}
	for len(listings) < maxChain {
		last := listings[len(listings)-1].Entries
		if len(last) != 1 || !last[0].IsDir() {
			return listings
		}
		next := last[0].Path
		listings = append(listings, Listing{Path: next, Entries: List(next, opts)})
	}
	return listings
}

// List returns the direct children of path, directories first, each group
// ordered by opts.Order. Unreadable paths yield no entries.
func List(path string, opts Options) []Entry {
	entries, err := fetchDir(path)
	if err != nil {
		debug.Log(debug.FS, "List: %q unreadable, treating as empty: %v", path, err)
		return nil
	}
	if !opts.ShowDotfiles {
		entries = filterDotfiles(entries)
	}
	SortEntries(entries, opts)
	return entries
}

// fetchDir reads the direct children of dir. Symlinks are reported with
// their target's kind; a dangling link is reported as a file.
func fetchDir(dir string) ([]Entry, error) {
	dir = filepath.Clean(dir)
	debug.Log(debug.FS, "fetchDir: %q", dir)

	var (
		mu      sync.Mutex
		entries []Entry
	)
	walkFn := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			debug.Log(debug.FS_ENTRY, "fetchDir: %q: %v", p, err)
			return nil
		}
		if p == dir {
			return nil
		}
		// Depth comes from the parent path, not the name: a backslash is
		// an ordinary name byte on Unix
		if filepath.Dir(p) != dir {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		e, ok := entryFor(p, d)
		if ok {
			mu.Lock()
			entries = append(entries, e)
			mu.Unlock()
		}
		if d.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	}

	if err := fastwalk.Walk(&fastwalk.Config{Follow: true}, dir, walkFn); err != nil {
		return nil, err
	}
	debug.Log(debug.FS, "fetchDir: %q has %d entries", dir, len(entries))
	return entries, nil
}

func entryFor(p string, d fs.DirEntry) (Entry, bool) {
	info, err := fastwalk.StatDirEntry(p, d)
	if err != nil {
		if info, err = os.Lstat(p); err != nil {
			debug.Log(debug.FS_ENTRY, "fetchDir: skip %q: %v", d.Name(), err)
			return Entry{}, false
		}
	}
	e := Entry{
		Name:    d.Name(),
		Path:    p,
		Kind:    KindFile,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if info.IsDir() {
		e.Kind = KindDirectory
	}
	debug.Log(debug.FS_ENTRY, "fetchDir: %q %s %d", e.Name, e.Kind, e.Size)
	return e, true
}

func filterDotfiles(entries []Entry) []Entry {
	result := entries[:0]
	for _, e := range entries {
		if !strings.HasPrefix(e.Name, ".") {
			result = append(result, e)
		}
	}
	return result
}
