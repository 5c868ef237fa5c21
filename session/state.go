package session

// State is the lifecycle state of a Session.
type State int32

const (
	Disconnected State = iota
	Connecting
	Authenticating
	JoiningRooms
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case JoiningRooms:
		return "joining rooms"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}
