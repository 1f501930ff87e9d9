package gate

// View is one of the renderable pages of the console.
type View int

const (
	ViewLoadingSpinner View = iota
	ViewNoSessionNotice
	ViewSecondaryPasswordSetupForm
	ViewSecondaryPasswordPromptForm
	ViewDashboard
)

func (v View) String() string {
	switch v {
	case ViewLoadingSpinner:
		return "loading"
	case ViewNoSessionNotice:
		return "no_session"
	case ViewSecondaryPasswordSetupForm:
		return "setup"
	case ViewSecondaryPasswordPromptForm:
		return "verify"
	case ViewDashboard:
		return "dashboard"
	default:
		return "invalid"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v View) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Select maps a state to the view that renders it.
// PendingStatus shares the spinner with Loading; unknown states fall back to the no session notice.
func Select(s State) View {
	switch s {
	case StateLoading, StatePendingStatus:
		return ViewLoadingSpinner
	case StateNeedsSetup:
		return ViewSecondaryPasswordSetupForm
	case StateNeedsVerification:
		return ViewSecondaryPasswordPromptForm
	case StateAuthenticated:
		return ViewDashboard
	default:
		return ViewNoSessionNotice
	}
}

// SelectTuple maps a state tuple directly to its view.
func SelectTuple(t Tuple) View {
	return Select(Resolve(t))
}
