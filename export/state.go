package export

// State is the phase of a single table export.
type State int

const (
	StateUnknown State = iota
	StateBuildingQuery
	StateExecuting
	StateStreaming
	StateFinalizing
	StateDiscarding
	StateDone
	StateFailed
)

func StateFromString(s string) State {
	switch s {
	case StateBuildingQuery.String():
		return StateBuildingQuery
	case StateExecuting.String():
		return StateExecuting
	case StateStreaming.String():
		return StateStreaming

	case StateFinalizing.String():
		return StateFinalizing
	case StateDiscarding.String():
		return StateDiscarding

	case StateDone.String():
		return StateDone
	case StateFailed.String():
		return StateFailed

	default:
		return StateUnknown
	}
}

func (s State) String() string {
	switch s {
	case StateBuildingQuery:
		return "building_query"
	case StateExecuting:
		return "executing"
	case StateStreaming:
		return "streaming"

	case StateFinalizing:
		return "finalizing"
	case StateDiscarding:
		return "discarding"

	case StateDone:
		return "done"
	case StateFailed:
		return "failed"

	default:
		return "unknown"
	}
}
