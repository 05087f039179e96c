package variable

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Buffer
// ---------------------------------------------------------------------------

// Buffer is a mutable text sink shared by reference. Every scope holding the
// same *Buffer observes writes made through any of them.
type Buffer struct {
	mu sync.Mutex
	sb strings.Builder
}

// NewBuffer creates a buffer holding s.
func NewBuffer(s string) *Buffer {
	b := &Buffer{}
	b.sb.WriteString(s)
	return b
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

// WriteString implements io.StringWriter.
func (b *Buffer) WriteString(s string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.WriteString(s)
}

// String returns the current content.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

// Length returns the content length in bytes.
func (b *Buffer) Length() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Len()
}

// Put replaces the content with s, or appends s when appendMode is set.
func (b *Buffer) Put(s string, appendMode bool) {
	if appendMode {
		b.WriteString(s)
		return
	}
	b.Replace(s)
}

// Replace sets the content to s.
func (b *Buffer) Replace(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sb.Reset()
	b.sb.WriteString(s)
}

// Clear empties the buffer.
func (b *Buffer) Clear() { b.Replace("") }

// ---------------------------------------------------------------------------
// Dir
// ---------------------------------------------------------------------------

// Dir is the mutable current-directory object. A cd statement rewrites it in
// place, so every scope holding the same *Dir sees the new directory. Paths
// are kept absolute, cleaned and with forward slashes.
type Dir struct {
	mu   sync.RWMutex
	path string
}

// NewDir creates a Dir for p, made absolute against the process working
// directory.
func NewDir(p string) (*Dir, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	return &Dir{path: normalize(abs)}, nil
}

// Path returns the directory as an absolute slash path.
func (d *Dir) Path() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path
}

// String implements fmt.Stringer.
func (d *Dir) String() string { return d.Path() }

// Native returns the directory in the operating system's notation.
func (d *Dir) Native() string { return filepath.FromSlash(d.Path()) }

// Resolve returns p as an absolute, cleaned slash path. Absolute paths and
// paths with a volume name replace the directory; relative paths are joined
// to it.
func (d *Dir) Resolve(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if isAbs(p) {
		return normalize(p)
	}
	return normalize(path.Join(d.Path(), p))
}

// Set replaces the directory with p resolved against the current value.
func (d *Dir) Set(p string) {
	resolved := d.Resolve(p)
	d.mu.Lock()
	d.path = resolved
	d.mu.Unlock()
}

// Clone returns an independent Dir with the same path.
func (d *Dir) Clone() *Dir {
	return &Dir{path: d.Path()}
}

// Text returns a read-only text view of d that follows every later Set.
func (d *Dir) Text() *DirText { return &DirText{dir: d} }

// DirText is the text of a Dir as of the moment it is read. It behaves as
// text in comparisons and concatenation.
type DirText struct {
	dir *Dir
}

func (t *DirText) String() string { return t.dir.Path() }

func isAbs(p string) bool {
	return strings.HasPrefix(p, "/") || filepath.IsAbs(p) || filepath.VolumeName(p) != ""
}

func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	vol := filepath.VolumeName(p)
	return vol + path.Clean(p[len(vol):])
}

// ---------------------------------------------------------------------------
// Counter
// ---------------------------------------------------------------------------

// Counter is the nextNr object: each conversion to text yields the next
// number, starting at 1.
type Counter struct {
	n atomic.Int64
}

// String increments the counter and returns the new value.
func (c *Counter) String() string {
	return strconv.FormatInt(c.n.Add(1), 10)
}

// Current returns the last value handed out without incrementing.
func (c *Counter) Current() int64 { return c.n.Load() }

// ---------------------------------------------------------------------------
// OrderedMap
// ---------------------------------------------------------------------------

// OrderedMap is a string-keyed map that iterates in insertion order.
type OrderedMap struct {
	keys []string
	m    map[string]interface{}
}

// NewOrderedMap creates an empty map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{m: make(map[string]interface{})}
}

// Get returns the value for key.
func (o *OrderedMap) Get(key string) (interface{}, bool) {
	v, ok := o.m[key]
	return v, ok
}

// Put sets key, appending it to the iteration order when new.
func (o *OrderedMap) Put(key string, value interface{}) {
	if _, ok := o.m[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.m[key] = value
}

// Keys returns the keys in insertion order.
func (o *OrderedMap) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Size returns the number of entries.
func (o *OrderedMap) Size() int { return len(o.keys) }

// SortedKeys returns the keys of a plain map in ascending order.
func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------------------------------------
// OpenFile
// ---------------------------------------------------------------------------

// OpenFile is a file opened for writing by an Openfile definition. It is a
// text sink like Buffer and is closed when its defining scope ends.
type OpenFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
}

// CreateFile creates (or truncates) the file at path.
func CreateFile(path string) (*OpenFile, error) {
	f, err := os.Create(filepath.FromSlash(path))
	if err != nil {
		return nil, err
	}
	return &OpenFile{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Write implements io.Writer.
func (o *OpenFile) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.w == nil {
		return 0, fmt.Errorf("write to closed file %s", o.path)
	}
	return o.w.Write(p)
}

// Close flushes and closes the file. Closing twice is a no-op.
func (o *OpenFile) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.w == nil {
		return nil
	}
	flushErr := o.w.Flush()
	closeErr := o.f.Close()
	o.w = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// String returns the file path.
func (o *OpenFile) String() string { return o.path }
