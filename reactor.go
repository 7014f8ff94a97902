package coreact

const (
	// ReactorMaxEvents is the default number of readiness events
	// collected by one reactor wait.
	ReactorMaxEvents = 1024
)

// Interest selects the readiness a registration waits for.
type Interest uint8

const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

func (i Interest) String() string {
	switch i {
	case InterestRead:
		return "read"
	case InterestWrite:
		return "write"
	case InterestRead | InterestWrite:
		return "read|write"
	default:
		return "none"
	}
}

type commandOp uint8

const (
	opRegister commandOp = iota
	opUnregister
)

func (op commandOp) String() string {
	if op == opRegister {
		return "register"
	}
	return "unregister"
}

// command is a registration change queued by a worker-side suspend
// point and applied by the reactor thread between waits.
type command struct {
	op       commandOp
	fd       int
	interest Interest
	waker    Waker
}
