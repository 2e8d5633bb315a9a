package websocket

// State is a connection's position in its lifecycle. Connections move
// Connecting -> Authenticating -> Validating -> Active -> Closed, or end in
// Rejected from any state before Active.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateValidating
	StateActive
	StateRejected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateValidating:
		return "validating"
	case StateActive:
		return "active"
	case StateRejected:
		return "rejected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
