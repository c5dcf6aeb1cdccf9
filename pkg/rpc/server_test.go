package rpc

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"

	"github.com/dylangardner/userctl/pkg/daemon"
)

func TestToDBusError_NilPassesThrough(t *testing.T) {
	assert.Nil(t, toDBusError(nil))
}

func TestToDBusError_MapsKnownSentinels(t *testing.T) {
	cases := []struct {
		err  error
		name string
	}{
		{daemon.ErrNoSuchClass, daemon.ErrNameNoSuchClass},
		{daemon.ErrNoClassForUser, daemon.ErrNameNoClassForUser},
		{daemon.ErrClassFailure, daemon.ErrNameClassFailure},
		{daemon.ErrDaemonFailure, daemon.ErrNameDaemonFailure},
	}
	for _, tc := range cases {
		dbusErr := toDBusError(tc.err)
		assert.Equal(t, errorPrefix+tc.name, dbusErr.Name)
	}
}

func TestUnwrap_NilPassesThrough(t *testing.T) {
	assert.NoError(t, unwrap(nil))
}

func TestUnwrap_StripsDaemonErrorPrefix(t *testing.T) {
	wire := dbus.Error{Name: errorPrefix + daemon.ErrNameNoSuchClass, Body: []interface{}{"registry: class \"x\" not found"}}

	err := unwrap(wire)
	var de *DaemonError
	if assert.ErrorAs(t, err, &de) {
		assert.Equal(t, daemon.ErrNameNoSuchClass, de.Name)
	}
}

func TestUnwrap_PassesThroughNonDaemonErrors(t *testing.T) {
	wire := dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}
	err := unwrap(wire)
	assert.Error(t, err)
	var de *DaemonError
	assert.False(t, assertErrorAsDaemon(err, &de))
}

func assertErrorAsDaemon(err error, target **DaemonError) bool {
	de, ok := err.(*DaemonError)
	if ok {
		*target = de
	}
	return ok
}
