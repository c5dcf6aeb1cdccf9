// Package daemon wires the Identity Resolver, Class Parser, Class Registry,
// Evaluator and Enforcer into the process-wide Context and exposes the RPC
// Surface's typed methods over it.
package daemon

import (
	"context"
	"fmt"

	"github.com/dylangardner/userctl/internal/logger"
	"github.com/dylangardner/userctl/pkg/classfile"
	"github.com/dylangardner/userctl/pkg/enforcer"
	"github.com/dylangardner/userctl/pkg/evaluator"
	"github.com/dylangardner/userctl/pkg/metrics"
	"github.com/dylangardner/userctl/pkg/registry"
)

// ClassInfo is the GetClass RPC payload: (filepath, shared, priority,
// users[], groups[]).
type ClassInfo struct {
	Filepath string
	Shared   bool
	Priority float64
	Users    []uint32
	Groups   []uint32
}

// Context is the process-wide state shared by the RPC surface and the
// event loop: the class Registry plus the collaborators that act on it. A
// single instance is created at startup and destroyed at shutdown.
type Context struct {
	registry *registry.Registry
	enforcer *enforcer.Enforcer
	session  ActiveUserSession
	metrics  *metrics.DaemonMetrics
	dir      string
	ext      string
	capacity int
}

// ActiveUserSession is the subset of session.Manager the Context depends
// on, so tests can substitute a fixture instead of a live system bus.
type ActiveUserSession interface {
	ActiveUIDs(ctx context.Context) ([]uint32, error)
}

// Options configures a new Context.
type Options struct {
	ClassDir         string
	ClassExt         string
	RegistryCapacity int
	SystemctlBinary  string
	Session          ActiveUserSession
	Metrics          *metrics.DaemonMetrics
}

// New creates a Context and performs the initial directory scan (the
// startup half of DaemonReload). The session manager is optional; when nil,
// SetProperty/Reload/DaemonReload still work but enforce_for_active_users
// is a no-op (used by tests that never enforce).
func New(opts Options) (*Context, error) {
	reg := registry.New(opts.ClassDir, opts.ClassExt, opts.RegistryCapacity)
	if err := reg.LoadAll(); err != nil {
		return nil, fmt.Errorf("daemon: initial class load: %w", err)
	}
	opts.Metrics.SetClassesLoaded(opts.ClassDir, reg.Count())

	enf := enforcer.New(opts.SystemctlBinary)
	enf.Metrics = opts.Metrics

	return &Context{
		registry: reg,
		enforcer: enf,
		session:  opts.Session,
		metrics:  opts.Metrics,
		dir:      opts.ClassDir,
		ext:      opts.ClassExt,
		capacity: opts.RegistryCapacity,
	}, nil
}

// DefaultExtension is the read-only RPC property exposing the configured
// class-file extension (Open Question 3).
func (c *Context) DefaultExtension() string {
	return c.registry.Ext()
}

// Registry returns the Context's class registry, for ambient surfaces
// (health readiness) that report on it without going through the RPC
// methods above.
func (c *Context) Registry() *registry.Registry {
	return c.registry
}

// ListClasses returns every loaded class's filepath in lexicographic name
// order.
func (c *Context) ListClasses() []string {
	return c.registry.Filepaths()
}

// GetClass looks up name (extension auto-appended if omitted) and returns
// its RPC payload, or ErrNoSuchClass.
func (c *Context) GetClass(name string) (ClassInfo, error) {
	name = c.registry.NormalizeName(name)
	class, err := c.registry.Lookup(name)
	if err != nil {
		return ClassInfo{}, ErrNoSuchClass
	}
	return ClassInfo{
		Filepath: class.Filepath,
		Shared:   class.Shared,
		Priority: class.Priority,
		Users:    class.SortedUsers(),
		Groups:   class.SortedGroups(),
	}, nil
}

// Evaluate resolves uid's winning class and returns its filepath, or
// ErrNoClassForUser when no class contains uid.
func (c *Context) Evaluate(uid uint32) (string, error) {
	result, err := evaluator.Evaluate(uid, c.registry)
	if err != nil {
		return "", err
	}
	if result.Matched == nil {
		return "", ErrNoClassForUser
	}
	return result.Matched.Filepath, nil
}

// Reload re-parses the single class file behind name and, on success,
// enforces it on that class's currently active members. If the file cannot
// be opened or read (e.g. it vanished) the old definition is preserved and
// ErrClassFailure is returned; a parse that only produced diagnostics still
// replaces it.
func (c *Context) Reload(ctx context.Context, name string) error {
	name = c.registry.NormalizeName(name)

	result, err := c.registry.ReplaceOne(name)
	if err != nil {
		var notExist *registry.ErrNotExist
		if asNotExist(err, &notExist) {
			return ErrNoSuchClass
		}
		logger.Error("reload failed, old class preserved", logger.Class(name), logger.Err(err))
		return ErrClassFailure
	}

	c.metrics.SetClassesLoaded(c.dir, c.registry.Count())
	c.enforceActiveUsers(ctx, result.Class)
	return nil
}

// DaemonReload rebuilds the entire registry from disk. On failure the old
// registry is left untouched and ErrDaemonFailure is returned; on success
// every class is enforced against its currently active members.
func (c *Context) DaemonReload(ctx context.Context) error {
	fresh := registry.New(c.dir, c.ext, c.capacity)
	if err := fresh.LoadAll(); err != nil {
		logger.Error("daemon reload failed, old registry preserved", logger.Err(err))
		return ErrDaemonFailure
	}

	c.registry.ReplaceAll(fresh)
	c.metrics.SetClassesLoaded(c.dir, c.registry.Count())
	c.enforceActiveUsers(ctx, nil)
	return nil
}

// SetProperty adds or replaces one control on name, in memory only, and
// enforces it on that class's currently active members.
func (c *Context) SetProperty(ctx context.Context, name, key, value string) error {
	name = c.registry.NormalizeName(name)

	updated, err := c.registry.SetControl(name, key, value)
	if err != nil {
		return ErrNoSuchClass
	}

	c.enforceActiveUsers(ctx, updated)
	return nil
}

// enforceActiveUsers kicks the Enforcer for filterClass's active members
// (or, when filterClass is nil, all active members against their
// currently-evaluated class). It is always best-effort: failures are
// logged, never propagated to the RPC caller, matching the state-machine
// contract that mutating operations only fail during Staging.
func (c *Context) enforceActiveUsers(ctx context.Context, filterClass *classfile.ClassDefinition) {
	if c.session == nil {
		return
	}
	failures := c.enforcer.EnforceForActiveUsers(ctx, sessionLister{c.session}, contextEvaluator{c.registry}, filterClass)
	if failures > 0 {
		logger.Warn("enforcement failed for some active users", logger.KeyFailures, failures)
	}
}

// sessionLister adapts ActiveUserSession to enforcer.ActiveUserLister.
type sessionLister struct{ s ActiveUserSession }

func (l sessionLister) ActiveUIDs(ctx context.Context) ([]uint32, error) { return l.s.ActiveUIDs(ctx) }

// contextEvaluator adapts the registry to enforcer.Evaluator.
type contextEvaluator struct{ reg *registry.Registry }

func (e contextEvaluator) EvaluateUID(uid uint32) (*classfile.ClassDefinition, int, error) {
	result, err := evaluator.Evaluate(uid, e.reg)
	if err != nil {
		return nil, 0, err
	}
	return result.Matched, result.MatchedCount, nil
}

func asNotExist(err error, target **registry.ErrNotExist) bool {
	if e, ok := err.(*registry.ErrNotExist); ok {
		*target = e
		return true
	}
	return false
}
