package daemon

import "errors"

// RPC error names are stable strings per the RPC surface contract; clients
// match on these, not on Go error identity.
const (
	ErrNameNoSuchClass    = "NoSuchClass"
	ErrNameNoClassForUser = "NoClassForUser"
	ErrNameClassFailure   = "ClassFailure"
	ErrNameDaemonFailure  = "DaemonFailure"
)

// Sentinel errors for in-process callers (the RPC transport layer maps
// these to the stable error names above before putting them on the wire).
var (
	ErrNoSuchClass    = errors.New(ErrNameNoSuchClass)
	ErrNoClassForUser = errors.New(ErrNameNoClassForUser)
	ErrClassFailure   = errors.New(ErrNameClassFailure)
	ErrDaemonFailure  = errors.New(ErrNameDaemonFailure)
)
