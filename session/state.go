package session

// State tracks where a conversation session is in its lifecycle.
//
// Transitions: Closed -> Opening -> Joined <-> Disconnected, and any live
// state -> Closed. A session never moves backwards to Opening except through
// an explicit reconnect.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateJoined
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
