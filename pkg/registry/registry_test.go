package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dylangardner/userctl/pkg/classfile"
)

func writeClass(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestLoadAll_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	reg := New(dir, ".class", 0)
	require.NoError(t, reg.LoadAll())

	assert.Equal(t, 0, reg.Count())
	assert.Empty(t, reg.Filepaths())
}

func TestLoadAll_PriorityTieLexOrderWins(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "a.class", "Priority=1\nGroups=staff\n")
	writeClass(t, dir, "b.class", "Priority=1\nGroups=staff\n")

	reg := New(dir, ".class", 0)
	require.NoError(t, reg.LoadAll())
	assert.Equal(t, 2, reg.Count())
	assert.Equal(t, []string{"a.class", "b.class"}, reg.Names())
}

func TestLookup_NotFound(t *testing.T) {
	reg := New(t.TempDir(), ".class", 0)
	require.NoError(t, reg.LoadAll())

	_, err := reg.Lookup("missing.class")
	assert.Error(t, err)
	var notExist *ErrNotExist
	assert.ErrorAs(t, err, &notExist)
}

func TestNormalizeName_AppendsExtension(t *testing.T) {
	reg := New(t.TempDir(), ".class", 0)
	assert.Equal(t, "student.class", reg.NormalizeName("student"))
	assert.Equal(t, "student.class", reg.NormalizeName("student.class"))
}

func TestReplaceOne_PreservesOldOnParseFailure(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "k.class", "Priority=3\n")

	reg := New(dir, ".class", 0)
	require.NoError(t, reg.LoadAll())

	before, err := reg.Lookup("k.class")
	require.NoError(t, err)
	assert.Equal(t, float64(3), before.Priority)

	require.NoError(t, os.Remove(filepath.Join(dir, "k.class")))

	_, err = reg.ReplaceOne("k.class")
	assert.Error(t, err)

	after, err := reg.Lookup("k.class")
	require.NoError(t, err)
	assert.Equal(t, float64(3), after.Priority)
}

func TestReplaceOne_ReplacesOnBestEffortParse(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "k.class", "Priority=3\n")

	reg := New(dir, ".class", 0)
	require.NoError(t, reg.LoadAll())

	writeClass(t, dir, "k.class", "Priority=not-a-number\n")

	result, err := reg.ReplaceOne("k.class")
	require.NoError(t, err)
	assert.True(t, result.HadErrors)

	after, err := reg.Lookup("k.class")
	require.NoError(t, err)
	assert.Equal(t, float64(0), after.Priority)
}

func TestSetControl_AddsTransientControl(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "x.class", "MemoryMax=1G\n")

	reg := New(dir, ".class", 0)
	require.NoError(t, reg.LoadAll())

	updated, err := reg.SetControl("x.class", "CPUQuota", "25%")
	require.NoError(t, err)
	assert.Equal(t, "1G", updated.Controls["MemoryMax"])
	assert.Equal(t, "25%", updated.Controls["CPUQuota"])
	assert.ElementsMatch(t, []string{"MemoryMax", "CPUQuota"}, updated.ControlOrder)

	// Original class is untouched except via the atomic swap.
	reread, err := reg.Lookup("x.class")
	require.NoError(t, err)
	assert.Equal(t, "25%", reread.Controls["CPUQuota"])
}

func TestSetControl_UnknownClass(t *testing.T) {
	reg := New(t.TempDir(), ".class", 0)
	require.NoError(t, reg.LoadAll())

	_, err := reg.SetControl("missing.class", "CPUQuota", "1%")
	assert.Error(t, err)
}

func TestLoadAll_CapacityLimitSkipsExcess(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "a.class", "Priority=1\n")
	writeClass(t, dir, "b.class", "Priority=1\n")
	writeClass(t, dir, "c.class", "Priority=1\n")

	reg := New(dir, ".class", 2)
	require.NoError(t, reg.LoadAll())
	assert.Equal(t, 2, reg.Count())
}

func TestReplaceAll_SwapsContentsAndDropsOld(t *testing.T) {
	dir1 := t.TempDir()
	writeClass(t, dir1, "old.class", "Priority=1\n")
	reg := New(dir1, ".class", 0)
	require.NoError(t, reg.LoadAll())
	require.Equal(t, 1, reg.Count())

	dir2 := t.TempDir()
	writeClass(t, dir2, "new.class", "Priority=1\n")
	fresh := New(dir2, ".class", 0)
	require.NoError(t, fresh.LoadAll())

	reg.ReplaceAll(fresh)

	assert.Equal(t, 1, reg.Count())
	_, err := reg.Lookup("old.class")
	assert.Error(t, err)
	_, err = reg.Lookup("new.class")
	assert.NoError(t, err)
}

func TestIterate_LexicographicOrder(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "z.class", "Priority=1\n")
	writeClass(t, dir, "a.class", "Priority=1\n")

	reg := New(dir, ".class", 0)
	require.NoError(t, reg.LoadAll())

	var seen []string
	reg.Iterate(func(c *classfile.ClassDefinition) bool {
		seen = append(seen, c.Name)
		return true
	})
	assert.Equal(t, []string{"a.class", "z.class"}, seen)
}
