// Package registry holds the current set of ClassDefinitions keyed by name,
// guarded by a single reader/writer lock — the Concurrency Harness of the
// daemon (readers overlap, writers are exclusive, nothing re-acquires the
// lock recursively).
package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dylangardner/userctl/internal/logger"
	"github.com/dylangardner/userctl/pkg/classfile"
)

// DefaultCapacity bounds the number of classes the registry will hold;
// files beyond this limit are logged and skipped during a directory scan.
const DefaultCapacity = 64

// ErrNotExist is returned by Lookup and ReplaceOne when name has no entry.
type ErrNotExist struct{ Name string }

func (e *ErrNotExist) Error() string {
	return fmt.Sprintf("registry: class %q not found", e.Name)
}

// Registry is the in-memory, mutex-guarded set of loaded classes. A
// Registry also owns the class directory and extension it was populated
// from, mirroring the Context of the original daemon.
type Registry struct {
	mu       sync.RWMutex
	classes  map[string]*classfile.ClassDefinition
	dir      string
	ext      string
	capacity int
}

// New creates an empty Registry scoped to dir/ext. Call LoadAll to populate
// it from disk.
func New(dir, ext string, capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		classes:  make(map[string]*classfile.ClassDefinition),
		dir:      dir,
		ext:      ext,
		capacity: capacity,
	}
}

// Dir returns the class directory this registry was populated from.
func (r *Registry) Dir() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dir
}

// Ext returns the configured class-file extension (DefaultExtension, per
// the RPC surface's read-only property).
func (r *Registry) Ext() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ext
}

// NormalizeName appends the registry's configured extension to name if it
// is not already present — the normalization helper the RPC boundary
// applies before every lookup so downstream code always sees fully
// qualified names.
func (r *Registry) NormalizeName(name string) string {
	ext := r.Ext()
	if strings.HasSuffix(name, ext) {
		return name
	}
	return name + ext
}

// LoadAll enumerates the registry's directory for files ending in its
// extension, parses each with the class parser, and replaces the entire
// registry contents atomically. Diagnostics are logged; files beyond
// capacity are skipped with a warning. If the directory read itself fails,
// the registry is left unchanged and the OS error is returned.
func (r *Registry) LoadAll() error {
	r.mu.RLock()
	dir, ext, capacity := r.dir, r.ext, r.capacity
	r.mu.RUnlock()

	names, err := classfile.ListFiles(dir, ext)
	if err != nil {
		return err
	}

	fresh := make(map[string]*classfile.ClassDefinition, len(names))
	for i, name := range names {
		if i >= capacity {
			logger.Warn("class registry at capacity, skipping file",
				logger.Class(name), "capacity", capacity)
			continue
		}

		path := filepath.Join(dir, name)
		result, err := classfile.ParseFile(path)
		if err != nil {
			logger.Warn("failed to open class file", logger.Filepath(path), logger.Err(err))
			continue
		}
		logDiagnostics(result)
		fresh[name] = result.Class
	}

	r.mu.Lock()
	r.classes = fresh
	r.mu.Unlock()
	return nil
}

func logDiagnostics(result *classfile.ParseResult) {
	for _, d := range result.Diags {
		logger.Warn(d.String(), logger.LineNum(d.Line), logger.Filepath(d.Filepath))
	}
}

// Lookup returns the class registered under name (already normalized), or
// ErrNotExist. The returned value is a read-only borrow taken under the
// shared lock; callers must not mutate it.
func (r *Registry) Lookup(name string) (*classfile.ClassDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.classes[name]
	if !ok {
		return nil, &ErrNotExist{Name: name}
	}
	return c, nil
}

// Iterate calls fn for every class in lexicographic name order, holding the
// shared lock for the duration. It implements evaluator.Snapshot.
func (r *Registry) Iterate(fn func(*classfile.ClassDefinition) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.sortedNamesLocked() {
		if !fn(r.classes[name]) {
			return
		}
	}
}

// Names returns the registered class names in lexicographic order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNamesLocked()
}

// Filepaths returns the registered classes' filepaths in lexicographic
// name order, the payload of ListClasses.
func (r *Registry) Filepaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.sortedNamesLocked()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = r.classes[name].Filepath
	}
	return paths
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of loaded classes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes)
}

// ReplaceOne re-parses the file backing name and swaps it in atomically.
// On parse failure (file missing or unreadable) the old definition is
// preserved and the error is returned; a best-effort parse with
// diagnostics still replaces the old definition (Open Question 1).
func (r *Registry) ReplaceOne(name string) (*classfile.ParseResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.classes[name]
	if !ok {
		return nil, &ErrNotExist{Name: name}
	}

	result, err := classfile.ParseFile(old.Filepath)
	if err != nil {
		return nil, err
	}
	logDiagnostics(result)

	r.classes[name] = result.Class
	return result, nil
}

// SetControl adds or replaces a single control on the named class, held
// entirely in memory (no write-back to the class file). On any failure the
// old class is left untouched.
func (r *Registry) SetControl(name, key, value string) (*classfile.ClassDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.classes[name]
	if !ok {
		return nil, &ErrNotExist{Name: name}
	}

	// Stage the mutation on a shallow copy so a failure leaves the
	// original untouched; SetControl itself cannot fail, but this mirrors
	// the stage/commit discipline the other mutating operations use.
	staged := *existing
	staged.Controls = make(map[string]string, len(existing.Controls)+1)
	staged.ControlOrder = append([]string(nil), existing.ControlOrder...)
	for k, v := range existing.Controls {
		staged.Controls[k] = v
	}
	staged.SetControl(key, value)

	r.classes[name] = &staged
	return &staged, nil
}

// ReplaceAll atomically swaps the entire registry contents, dropping all
// prior entries — the effect of DaemonReload.
func (r *Registry) ReplaceAll(fresh *Registry) {
	fresh.mu.RLock()
	classes := fresh.classes
	dir, ext, capacity := fresh.dir, fresh.ext, fresh.capacity
	fresh.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = classes
	r.dir = dir
	r.ext = ext
	r.capacity = capacity
}
