// Package classfile parses userctl class files into ClassDefinition values,
// reporting per-line diagnostics the way the host daemon's log expects them.
package classfile

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dylangardner/userctl/internal/logger"
	"github.com/dylangardner/userctl/pkg/identity"
)

// MaxLineBytes bounds a single class-file line; a longer line is a
// diagnostic, not a crash. Parsing stops at the first oversized line: that
// line and every line after it are not parsed.
const MaxLineBytes = 8192

// ClassDefinition is the parsed form of one class file.
type ClassDefinition struct {
	// Filepath is the absolute path of the class file; it is the class's
	// stable identity.
	Filepath string
	// Name is the final path component, including extension; used for
	// client-facing lookup.
	Name string
	// Shared is reserved; it does not affect evaluation.
	Shared bool
	// Priority is a finite real number; higher wins. Default 0.
	Priority float64
	// Users is the set of user ids this class matches directly.
	Users map[uint32]struct{}
	// Groups is the set of group ids this class matches.
	Groups map[uint32]struct{}
	// Controls is the key -> value mapping of resource controls, keyed by
	// the authored (not lower-cased) key. A later occurrence of the same
	// key replaces the earlier one; insertion order is preserved in
	// ControlOrder for enforcement (Open Question 4).
	Controls     map[string]string
	ControlOrder []string
}

// Diagnostic is one per-line parse note, formatted on demand as
// "{linenum}:{filepath} {message}" per the class-file diagnostic contract.
type Diagnostic struct {
	Line     int
	Filepath string
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%s %s", d.Line, d.Filepath, d.Message)
}

// ParseResult is the outcome of parsing one class file: the best-effort
// ClassDefinition plus any diagnostics encountered. HadErrors is true when a
// hard parse failure occurred (malformed Shared value, unparseable
// Priority, oversized line, missing '='); the definition is still usable.
type ParseResult struct {
	Class     *ClassDefinition
	Diags     []Diagnostic
	HadErrors bool
}

func newDefinition(filepath, name string) *ClassDefinition {
	return &ClassDefinition{
		Filepath: filepath,
		Name:     name,
		Users:    make(map[uint32]struct{}),
		Groups:   make(map[uint32]struct{}),
		Controls: make(map[string]string),
	}
}

// SetControl inserts or replaces a control, recording insertion order the
// first time the key is seen.
func (c *ClassDefinition) SetControl(key, value string) {
	if _, exists := c.Controls[key]; !exists {
		c.ControlOrder = append(c.ControlOrder, key)
	}
	c.Controls[key] = value
}

// ParseFile reads filepath and returns its best-effort ClassDefinition and
// diagnostics. A failure to open the file itself is returned as an error;
// everything else is reported as a Diagnostic.
func ParseFile(filepath string) (*ParseResult, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := filepath
	if idx := strings.LastIndexByte(filepath, '/'); idx >= 0 {
		name = filepath[idx+1:]
	}

	result := &ParseResult{Class: newDefinition(filepath, name)}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, MaxLineBytes), MaxLineBytes)

	linenum := 0
	for scanner.Scan() {
		linenum++
		line := scanner.Text()
		parseLine(result, linenum, filepath, line)
	}

	if err := scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			result.Diags = append(result.Diags, Diagnostic{
				Line: linenum + 1, Filepath: filepath,
				Message: "Line exceeds maximum length. Ignoring.",
			})
			result.HadErrors = true
		} else {
			return nil, err
		}
	}

	return result, nil
}

func parseLine(result *ParseResult, linenum int, filepath, line string) {
	trimmed := strings.TrimSpace(line)

	if trimmed == "" {
		return
	}
	if strings.HasPrefix(trimmed, "#") {
		return
	}

	eq := strings.IndexByte(trimmed, '=')
	if eq < 0 {
		result.Diags = append(result.Diags, Diagnostic{linenum, filepath, "No key=value found. Ignoring."})
		result.HadErrors = true
		return
	}

	key := strings.TrimSpace(trimmed[:eq])
	value := strings.TrimSpace(trimmed[eq+1:])
	if key == "" || value == "" {
		result.Diags = append(result.Diags, Diagnostic{linenum, filepath, "Failed to parse key=value"})
		result.HadErrors = true
		return
	}

	if err := insertProp(result.Class, key, value); err != nil {
		result.Diags = append(result.Diags, Diagnostic{linenum, filepath, err.Error()})
		result.HadErrors = true
	}
}

func insertProp(c *ClassDefinition, key, value string) error {
	switch strings.ToLower(key) {
	case "shared":
		switch strings.ToLower(value) {
		case "true", "yes":
			c.Shared = true
		case "false", "no":
			c.Shared = false
		default:
			return fmt.Errorf("Unknown key=value pair")
		}
	case "priority":
		p, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
			c.Priority = 0
			return fmt.Errorf("Unknown key=value pair")
		}
		c.Priority = p
	case "users":
		parseIDList(value, c.Users, identity.ToUID)
	case "groups":
		parseIDList(value, c.Groups, identity.ToGID)
	default:
		c.SetControl(key, value)
	}
	return nil
}

func parseIDList(value string, into map[uint32]struct{}, resolve func(string) (uint32, error)) {
	for _, token := range strings.Split(value, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		id, err := resolve(token)
		if err != nil {
			// LookupMiss or LookupFailure: both drop the entry without a
			// diagnostic; only a debug-level note is logged.
			logger.Debug("dropping unresolved class member", "member", token, logger.Err(err))
			continue
		}
		into[id] = struct{}{}
	}
}

// SortedUsers returns the class's user ids in ascending order, for
// deterministic output (RPC payloads, tests).
func (c *ClassDefinition) SortedUsers() []uint32 {
	return sortedUint32Keys(c.Users)
}

// SortedGroups returns the class's group ids in ascending order.
func (c *ClassDefinition) SortedGroups() []uint32 {
	return sortedUint32Keys(c.Groups)
}

func sortedUint32Keys(m map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasExt reports whether name ends with ext.
func HasExt(name, ext string) bool {
	return strings.HasSuffix(name, ext)
}

// ListFiles enumerates dir for entries whose name ends with ext, sorted
// lexicographically — mirroring the original scandir(3) + alphasort pairing.
// Only directories are excluded; every other entry type (regular file,
// symlink, or anything else) is listed.
func ListFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !HasExt(e.Name(), ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
