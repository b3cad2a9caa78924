package session

// State is the negotiation state of a session.
type State int

const (
	StateIdle State = iota
	StateLocalStreamReady
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocalStreamReady:
		return "local-stream-ready"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Role decides which side offers. It is fixed for the life of a session.
type Role int

const (
	// RoleInitiator created the room and sends the offer.
	RoleInitiator Role = iota
	// RoleJoiner joined the room and answers.
	RoleJoiner
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "joiner"
}

// Status is the liveness of the media link, independent of negotiation.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Change is delivered to the OnStateChange callback. Err carries failures of
// asynchronous negotiation and of the link.
type Change struct {
	State  State
	Status Status
	Err    error
}
