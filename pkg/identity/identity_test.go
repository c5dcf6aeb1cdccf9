package identity

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToUID_NumericCurrentUser(t *testing.T) {
	uid := os.Getuid()
	got, err := ToUID(strconv.Itoa(uid))
	require.NoError(t, err)
	assert.Equal(t, uint32(uid), got)
}

func TestToUID_UnknownNumeric(t *testing.T) {
	_, err := ToUID("4294967")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToUID_UnknownName(t *testing.T) {
	_, err := ToUID("definitely-not-a-real-user-xyz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToGID_UnknownNumeric(t *testing.T) {
	_, err := ToGID("4294967")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToGID_UnknownName(t *testing.T) {
	_, err := ToGID("definitely-not-a-real-group-xyz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToUsername_CurrentUser(t *testing.T) {
	uid := os.Getuid()
	name, err := ToUsername(uint32(uid))
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	resolved, err := ToUID(name)
	require.NoError(t, err)
	assert.Equal(t, uint32(uid), resolved)
}

func TestGroupsOf_CurrentUser(t *testing.T) {
	uid := os.Getuid()
	groups, err := GroupsOf(uint32(uid))
	require.NoError(t, err)
	assert.NotEmpty(t, groups)
}

func TestGroupsOf_UnknownUser(t *testing.T) {
	_, err := GroupsOf(4294967)
	assert.ErrorIs(t, err, ErrNotFound)
}
