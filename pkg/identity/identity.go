// Package identity resolves between user/group names and numeric ids and
// enumerates a user's group memberships, backed by the host's passwd/group
// databases.
package identity

import (
	"errors"
	"os/user"
	"strconv"
)

// ErrNotFound is returned when a name or id does not resolve to an entry in
// the passwd or group database. Distinct from a lookup failure so callers
// (the class parser, the evaluator) can decide whether to skip an entry or
// abort.
var ErrNotFound = errors.New("identity: not found")

// LookupError wraps an underlying failure from the OS lookup machinery
// itself (e.g. a name-service outage), as opposed to a clean "not found".
type LookupError struct {
	Op  string
	Err error
}

func (e *LookupError) Error() string {
	return "identity: " + e.Op + ": " + e.Err.Error()
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ToUID resolves nameOrDecimal to a uid. If the input is all decimal digits
// it is parsed as a numeric id and verified against the passwd database;
// otherwise it is looked up by name.
func ToUID(nameOrDecimal string) (uint32, error) {
	if isDecimal(nameOrDecimal) {
		n, err := strconv.ParseUint(nameOrDecimal, 10, 32)
		if err != nil {
			return 0, &LookupError{Op: "ToUID", Err: err}
		}
		if _, err := user.LookupId(nameOrDecimal); err != nil {
			if errors.As(err, new(user.UnknownUserIdError)) {
				return 0, ErrNotFound
			}
			return 0, &LookupError{Op: "ToUID", Err: err}
		}
		return uint32(n), nil
	}

	u, err := user.Lookup(nameOrDecimal)
	if err != nil {
		if errors.As(err, new(user.UnknownUserError)) {
			return 0, ErrNotFound
		}
		return 0, &LookupError{Op: "ToUID", Err: err}
	}
	n, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, &LookupError{Op: "ToUID", Err: err}
	}
	return uint32(n), nil
}

// ToGID resolves nameOrDecimal to a gid using the same policy as ToUID
// against the group database.
func ToGID(nameOrDecimal string) (uint32, error) {
	if isDecimal(nameOrDecimal) {
		n, err := strconv.ParseUint(nameOrDecimal, 10, 32)
		if err != nil {
			return 0, &LookupError{Op: "ToGID", Err: err}
		}
		if _, err := user.LookupGroupId(nameOrDecimal); err != nil {
			if errors.As(err, new(user.UnknownGroupIdError)) {
				return 0, ErrNotFound
			}
			return 0, &LookupError{Op: "ToGID", Err: err}
		}
		return uint32(n), nil
	}

	g, err := user.LookupGroup(nameOrDecimal)
	if err != nil {
		if errors.As(err, new(user.UnknownGroupError)) {
			return 0, ErrNotFound
		}
		return 0, &LookupError{Op: "ToGID", Err: err}
	}
	n, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return 0, &LookupError{Op: "ToGID", Err: err}
	}
	return uint32(n), nil
}

// ToUsername reverse-resolves a uid to its username.
func ToUsername(uid uint32) (string, error) {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		if errors.As(err, new(user.UnknownUserIdError)) {
			return "", ErrNotFound
		}
		return "", &LookupError{Op: "ToUsername", Err: err}
	}
	return u.Username, nil
}

// ToGroupname reverse-resolves a gid to its group name.
func ToGroupname(gid uint32) (string, error) {
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		if errors.As(err, new(user.UnknownGroupIdError)) {
			return "", ErrNotFound
		}
		return "", &LookupError{Op: "ToGroupname", Err: err}
	}
	return g.Name, nil
}

// GroupsOf returns the uid's initial group plus its supplementary groups.
func GroupsOf(uid uint32) ([]uint32, error) {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		if errors.As(err, new(user.UnknownUserIdError)) {
			return nil, ErrNotFound
		}
		return nil, &LookupError{Op: "GroupsOf", Err: err}
	}

	gidStrs, err := u.GroupIds()
	if err != nil {
		return nil, &LookupError{Op: "GroupsOf", Err: err}
	}

	gids := make([]uint32, 0, len(gidStrs))
	for _, s := range gidStrs {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			continue
		}
		gids = append(gids, uint32(n))
	}
	return gids, nil
}
