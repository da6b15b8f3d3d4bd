package voiceclient

// State is the explicit connection state of a Client. Transitions:
//
//	Disconnected -> Connecting -> Connected -> Disconnected
//
// An unexpected close schedules a reconnect; an explicit Disconnect cancels
// any pending reconnect and leaves the client parked in Disconnected.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
