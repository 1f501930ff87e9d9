package gate

// SetupStatus is whether the account has ever configured a cloud password.
type SetupStatus int

const (
	// SetupUnknown means the status has not been confirmed by the server in this run.
	SetupUnknown SetupStatus = iota
	// SetupNotSetUp means the account has no cloud password.
	SetupNotSetUp
	// SetupSetUp means the account has a cloud password.
	SetupSetUp
)

func (s SetupStatus) String() string {
	switch s {
	case SetupNotSetUp:
		return "not_set_up"
	case SetupSetUp:
		return "set_up"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SetupStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is the authentication state of a browser.
type State int

const (
	StateLoading State = iota
	StateNoSession
	StatePendingStatus
	StateNeedsSetup
	StateNeedsVerification
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateNoSession:
		return "no_session"
	case StatePendingStatus:
		return "pending_status"
	case StateNeedsSetup:
		return "needs_setup"
	case StateNeedsVerification:
		return "needs_verification"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "invalid"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Tuple is the set of variables a State is derived from.
type Tuple struct {
	Booting  bool
	HasUser  bool
	Setup    SetupStatus
	Verified bool
}

// Resolve derives the state of a tuple.
// An unknown setup status always resolves to PendingStatus, so Authenticated requires a confirmed status.
func Resolve(t Tuple) State {
	switch {
	case t.Booting:
		return StateLoading
	case !t.HasUser:
		return StateNoSession
	case t.Setup == SetupUnknown:
		return StatePendingStatus
	case t.Verified:
		return StateAuthenticated
	case t.Setup == SetupSetUp:
		return StateNeedsVerification
	default:
		return StateNeedsSetup
	}
}
