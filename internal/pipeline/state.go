package pipeline

// state is a stage of a single run.
type state int

const (
	stateIdle state = iota
	stateRanking
	stateDetailing
	stateFinalizing
	stateDone
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRanking:
		return "ranking"
	case stateDetailing:
		return "detailing"
	case stateFinalizing:
		return "finalizing"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}
