package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeClass(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

// currentUser returns a name (or its numeric uid as fallback) the Users
// grammar can resolve for the running test process.
func currentUser(t *testing.T) (string, uint32) {
	t.Helper()
	uid := uint32(os.Getuid())
	if name := os.Getenv("USER"); name != "" {
		return name, uid
	}
	return strconv.FormatUint(uint64(uid), 10), uid
}

type fakeSession struct{ uids []uint32 }

func (f fakeSession) ActiveUIDs(context.Context) ([]uint32, error) { return f.uids, nil }

func TestContext_ListClasses_Empty(t *testing.T) {
	c, err := New(Options{ClassDir: t.TempDir(), ClassExt: ".class"})
	require.NoError(t, err)
	assert.Empty(t, c.ListClasses())
}

func TestContext_GetClass_NoSuchClass(t *testing.T) {
	c, err := New(Options{ClassDir: t.TempDir(), ClassExt: ".class"})
	require.NoError(t, err)

	_, err = c.GetClass("missing")
	assert.ErrorIs(t, err, ErrNoSuchClass)
}

func TestContext_GetClass_AppendsExtension(t *testing.T) {
	dir := t.TempDir()
	user, uid := currentUser(t)
	writeClass(t, dir, "student.class", "Priority=1\nUsers="+user+"\nCPUQuota=50%\n")

	c, err := New(Options{ClassDir: dir, ClassExt: ".class"})
	require.NoError(t, err)

	info, err := c.GetClass("student")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "student.class"), info.Filepath)
	assert.Equal(t, float64(1), info.Priority)
	assert.Contains(t, info.Users, uid)
}

func TestContext_Evaluate_SingleMatch(t *testing.T) {
	dir := t.TempDir()
	user, uid := currentUser(t)
	writeClass(t, dir, "student.class", "Priority=1\nUsers="+user+"\nCPUQuota=50%\n")

	c, err := New(Options{ClassDir: dir, ClassExt: ".class"})
	require.NoError(t, err)

	path, err := c.Evaluate(uid)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "student.class"), path)
}

func TestContext_Evaluate_NoClassForUser(t *testing.T) {
	c, err := New(Options{ClassDir: t.TempDir(), ClassExt: ".class"})
	require.NoError(t, err)

	_, uid := currentUser(t)
	_, err = c.Evaluate(uid)
	assert.ErrorIs(t, err, ErrNoClassForUser)
}

func TestContext_Reload_PreservesOldOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "k.class", "Priority=3\n")

	c, err := New(Options{ClassDir: dir, ClassExt: ".class"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "k.class")))

	err = c.Reload(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClassFailure)

	info, err := c.GetClass("k")
	require.NoError(t, err)
	assert.Equal(t, float64(3), info.Priority)
}

func TestContext_Reload_UnknownClass(t *testing.T) {
	c, err := New(Options{ClassDir: t.TempDir(), ClassExt: ".class"})
	require.NoError(t, err)

	err = c.Reload(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoSuchClass)
}

func TestContext_SetProperty_AddsTransientControlAndEnforces(t *testing.T) {
	dir := t.TempDir()
	user, uid := currentUser(t)
	writeClass(t, dir, "x.class", "Users="+user+"\nMemoryMax=1G\n")

	c, err := New(Options{
		ClassDir:        dir,
		ClassExt:        ".class",
		SystemctlBinary: "/bin/true",
		Session:         fakeSession{uids: []uint32{uid}},
	})
	require.NoError(t, err)

	err = c.SetProperty(context.Background(), "x", "CPUQuota", "25%")
	require.NoError(t, err)

	info, err := c.GetClass("x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x.class"), info.Filepath)
}

func TestContext_SetProperty_UnknownClass(t *testing.T) {
	c, err := New(Options{ClassDir: t.TempDir(), ClassExt: ".class"})
	require.NoError(t, err)

	err = c.SetProperty(context.Background(), "missing", "CPUQuota", "1%")
	assert.ErrorIs(t, err, ErrNoSuchClass)
}

func TestContext_DaemonReload_RebuildsRegistry(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "old.class", "Priority=1\n")

	c, err := New(Options{ClassDir: dir, ClassExt: ".class"})
	require.NoError(t, err)
	require.Len(t, c.ListClasses(), 1)

	require.NoError(t, os.Remove(filepath.Join(dir, "old.class")))
	writeClass(t, dir, "new.class", "Priority=1\n")

	require.NoError(t, c.DaemonReload(context.Background()))

	classes := c.ListClasses()
	require.Len(t, classes, 1)
	assert.Equal(t, filepath.Join(dir, "new.class"), classes[0])
}

func TestContext_DaemonReload_PreservesOldOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "old.class", "Priority=1\n")

	c, err := New(Options{ClassDir: dir, ClassExt: ".class"})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))

	err = c.DaemonReload(context.Background())
	assert.ErrorIs(t, err, ErrDaemonFailure)
	assert.Len(t, c.ListClasses(), 1)
}

func TestContext_DefaultExtension(t *testing.T) {
	c, err := New(Options{ClassDir: t.TempDir(), ClassExt: ".class"})
	require.NoError(t, err)
	assert.Equal(t, ".class", c.DefaultExtension())
}
