package bridge

// State is the orchestrator's lifecycle state. Transitions are
// one-directional; a failure before ChannelsActive aborts startup.
type State int32

const (
	StateCreated State = iota
	StateSessionEstablished
	StateVersionChecked
	StateConfigSynced
	StateChannelsActive
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSessionEstablished:
		return "session established"
	case StateVersionChecked:
		return "version checked"
	case StateConfigSynced:
		return "config synced"
	case StateChannelsActive:
		return "channels active"
	case StateShuttingDown:
		return "shutting down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
