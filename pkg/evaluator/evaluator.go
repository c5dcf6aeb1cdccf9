// Package evaluator implements the pure function mapping (uid, registry) to
// at most one winning ClassDefinition.
package evaluator

import (
	"math"

	"github.com/dylangardner/userctl/pkg/classfile"
	"github.com/dylangardner/userctl/pkg/identity"
)

// GroupResolver looks up a uid's group memberships; identity.GroupsOf in
// production, a fixture in tests.
type GroupResolver func(uid uint32) ([]uint32, error)

// Result is the outcome of evaluating a uid against a registry snapshot.
type Result struct {
	// Matched is the winning class, or nil if no class contained the uid.
	Matched *classfile.ClassDefinition
	// MatchedCount is the number of classes that contained the uid, so
	// callers can distinguish "no match" from "one match" from "several
	// equally-highest-priority matches".
	MatchedCount int
}

// Snapshot is the minimal read-only view of the registry the evaluator
// needs: classes visited in their canonical (lexicographic) order.
type Snapshot interface {
	// Iterate calls fn for each class in lexicographic name order. fn
	// returning false stops iteration early (unused by Evaluate, available
	// for callers that compose it).
	Iterate(fn func(*classfile.ClassDefinition) bool)
}

// Evaluate resolves uid's group memberships via identity.GroupsOf and walks
// the registry snapshot in lexicographic order, selecting the
// strictly-highest-priority containing class. On ties the first-seen
// (lexicographically earlier) class wins, because later classes must beat
// the incumbent with strict greater-than to replace it.
func Evaluate(uid uint32, snap Snapshot) (Result, error) {
	return EvaluateWithResolver(uid, snap, identity.GroupsOf)
}

// EvaluateWithResolver is Evaluate with an injectable GroupResolver, for
// tests that pin group membership without touching the host's passwd/group
// database.
func EvaluateWithResolver(uid uint32, snap Snapshot, resolve GroupResolver) (Result, error) {
	groups, err := resolve(uid)
	if err != nil {
		return Result{}, err
	}

	groupSet := make(map[uint32]struct{}, len(groups))
	for _, g := range groups {
		groupSet[g] = struct{}{}
	}

	result := Result{}
	bestPriority := math.Inf(-1)

	snap.Iterate(func(c *classfile.ClassDefinition) bool {
		if !contains(uid, groupSet, c) {
			return true
		}
		result.MatchedCount++
		if c.Priority > bestPriority {
			bestPriority = c.Priority
			result.Matched = c
		}
		return true
	})

	return result, nil
}

// contains reports whether uid (directly, or via one of groupSet) belongs
// to class c.
func contains(uid uint32, groupSet map[uint32]struct{}, c *classfile.ClassDefinition) bool {
	if _, ok := c.Users[uid]; ok {
		return true
	}
	for gid := range c.Groups {
		if _, ok := groupSet[gid]; ok {
			return true
		}
	}
	return false
}
