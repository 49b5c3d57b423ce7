package stream

// State is the lifecycle position of a Consumer.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateParked
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateParked:
		return "parked"
	case StateFaulted:
		return "faulted"
	}

	return "unknown"
}

// ParkReason tells why a consumer stopped consuming without failing.
type ParkReason string

const (
	ParkReasonNone       ParkReason = ""
	ParkReasonEndOfRange ParkReason = "end-of-range"
	ParkReasonCaughtUp   ParkReason = "caught-up"
)
