// Package enforcer translates a class's resource controls into invocations
// of the host service manager against a user's slice unit.
package enforcer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"syscall"

	"github.com/dylangardner/userctl/internal/logger"
	"github.com/dylangardner/userctl/pkg/classfile"
	"github.com/dylangardner/userctl/pkg/metrics"
)

// DefaultBinary is the service-manager binary invoked to apply controls.
const DefaultBinary = "/bin/systemctl"

// Enforcer spawns the host service manager to apply a class's controls to
// a user's slice unit.
type Enforcer struct {
	binary string

	// Metrics is optional; a nil value (the zero value) disables recording,
	// matching the daemon's zero-overhead-when-disabled metrics contract.
	Metrics *metrics.DaemonMetrics
}

// New creates an Enforcer that invokes binary (DefaultBinary if empty).
func New(binary string) *Enforcer {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Enforcer{binary: binary}
}

// sliceUnit returns the unit name the service manager uses for uid's
// per-user cgroup.
func sliceUnit(uid uint32) string {
	return fmt.Sprintf("user-%d.slice", uid)
}

// Enforce applies controls to uid's slice unit. An empty controls map is a
// no-op success. A non-zero exit or signal is logged with the full argv and
// returns an error, but never panics or otherwise disrupts the caller —
// enforcement failures never terminate the daemon.
func (e *Enforcer) Enforce(ctx context.Context, uid uint32, controls map[string]string, order []string) error {
	if len(controls) == 0 {
		return nil
	}

	argv := e.buildArgv(uid, controls, order)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	err := cmd.Run()
	if err == nil {
		e.Metrics.RecordEnforcement("success")
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			logger.Error("enforcement process killed by signal",
				logger.UID(uid), logger.Argv(argv), logger.Signal(status.Signal().String()))
			e.Metrics.RecordEnforcement("signaled")
			return fmt.Errorf("enforcer: %s killed by signal %s", argv[0], status.Signal())
		}
		logger.Error("enforcement process exited nonzero",
			logger.UID(uid), logger.Argv(argv), logger.ExitCode(exitErr.ExitCode()))
		e.Metrics.RecordEnforcement("nonzero_exit")
		return fmt.Errorf("enforcer: %s exited with status %d", argv[0], exitErr.ExitCode())
	}

	logger.Error("failed to spawn enforcement process", logger.UID(uid), logger.Argv(argv), logger.Err(err))
	e.Metrics.RecordEnforcement("spawn_failure")
	return fmt.Errorf("enforcer: failed to spawn %s: %w", argv[0], err)
}

// buildArgv composes `systemctl set-property user-{uid}.slice KEY=VALUE ...`
// in the order given by order (the class's ControlOrder: authored order, with
// SetProperty additions last), with any keys missing from order appended in
// sorted order afterward so the argv stays deterministic.
func (e *Enforcer) buildArgv(uid uint32, controls map[string]string, order []string) []string {
	argv := make([]string, 0, 3+len(controls))
	argv = append(argv, e.binary, "set-property", sliceUnit(uid))

	seen := make(map[string]struct{}, len(order))
	for _, key := range order {
		value, ok := controls[key]
		if !ok {
			continue
		}
		argv = append(argv, key+"="+value)
		seen[key] = struct{}{}
	}

	var remaining []string
	for key := range controls {
		if _, ok := seen[key]; !ok {
			remaining = append(remaining, key)
		}
	}
	sort.Strings(remaining)
	for _, key := range remaining {
		argv = append(argv, key+"="+controls[key])
	}

	return argv
}

// EnforceClass applies class's controls to every uid in uids. Errors for
// one uid do not stop the others; the count of failures is returned.
func (e *Enforcer) EnforceClass(ctx context.Context, class *classfile.ClassDefinition, uids []uint32) int {
	failures := 0
	for _, uid := range uids {
		if err := e.Enforce(ctx, uid, class.Controls, class.ControlOrder); err != nil {
			failures++
		}
	}
	return failures
}

// ActiveUserLister enumerates currently logged-in users, as supplied by the
// session-manager contract (login1.ListUsers in production).
type ActiveUserLister interface {
	ActiveUIDs(ctx context.Context) ([]uint32, error)
}

// Evaluator is the subset of evaluator.Evaluate this package depends on,
// kept as an interface so this package does not import pkg/evaluator and
// tests can substitute a fixture.
type Evaluator interface {
	EvaluateUID(uid uint32) (class *classfile.ClassDefinition, matchedCount int, err error)
}

// EnforceForActiveUsers evaluates every currently active user against eval
// and enforces the winning class's controls. When filterClass is non-nil,
// only uids whose winning class matches filterClass (compared by Filepath)
// are enforced. The operation always completes; it returns the number of
// uids it failed to enforce for (lookups plus enforcement failures).
func (e *Enforcer) EnforceForActiveUsers(ctx context.Context, lister ActiveUserLister, eval Evaluator, filterClass *classfile.ClassDefinition) int {
	uids, err := lister.ActiveUIDs(ctx)
	if err != nil {
		logger.Error("failed to list active users", logger.Err(err))
		return 0
	}

	failures := 0
	for _, uid := range uids {
		class, _, err := eval.EvaluateUID(uid)
		if err != nil {
			logger.Warn("failed to evaluate active user", logger.UID(uid), logger.Err(err))
			failures++
			continue
		}
		if class == nil {
			continue
		}
		if filterClass != nil && class.Filepath != filterClass.Filepath {
			continue
		}
		if err := e.Enforce(ctx, uid, class.Controls, class.ControlOrder); err != nil {
			failures++
		}
	}
	return failures
}
