package loop

import "strings"

type State int

const (
	StateNoChange State = iota
	StateInitial
	StateInactive
	StateSleeping
	StateWarmup
	StateMeasure
	StateTransmit
	StateFinal
)

var stateNames = map[State]string{
	StateNoChange: "NoChange",
	StateInitial:  "Initial",
	StateInactive: "Inactive",
	StateSleeping: "Sleeping",
	StateWarmup:   "Warmup",
	StateMeasure:  "Measure",
	StateTransmit: "Transmit",
	StateFinal:    "Final",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Inputs is everything a transition may depend on, sampled once per poll.
type Inputs struct {
	Exit            bool
	Active          bool
	RequestActive   bool
	RequestInactive bool
	TimerElapsed    bool
	WarmupElapsed   bool
	TxDone          bool
	TxOK            bool
	SleepOK         bool
}

// Action is the set of side effects the loop performs for a transition.
type Action uint16

const (
	ActionReset Action = 1 << iota
	ActionStopTimer
	ActionStartTimer
	ActionWarmup
	ActionMeasure
	ActionTransmit
	ActionAdvanceCadence
	ActionSleep
	ActionClearRequests
	ActionPowerDown
	ActionRelease
)

const ActionNone Action = 0

var actionNames = []string{
	"Reset", "StopTimer", "StartTimer", "Warmup", "Measure", "Transmit",
	"AdvanceCadence", "Sleep", "ClearRequests", "PowerDown", "Release",
}

func (a Action) Has(x Action) bool { return a&x == x }

func (a Action) String() string {
	if a == ActionNone {
		return "none"
	}
	var names []string
	for i, name := range actionNames {
		if a&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

// Transition computes one step of the measurement loop. It returns StateNoChange
// when the loop stays where it is; the action set includes the entry actions of
// the target state.
func Transition(s State, in Inputs) (State, Action) {
	if s == StateFinal {
		return StateNoChange, ActionNone
	}
	if in.Exit {
		return StateFinal, ActionStopTimer | ActionPowerDown | ActionRelease
	}

	switch s {
	case StateInitial:
		if in.Active {
			return StateSleeping, ActionReset | ActionStartTimer
		}
		return StateInactive, ActionStopTimer

	case StateInactive:
		if in.RequestActive {
			return StateSleeping, ActionClearRequests | ActionReset | ActionStartTimer
		}
		if in.RequestInactive {
			return StateNoChange, ActionClearRequests
		}

	case StateSleeping:
		if in.RequestInactive {
			return StateInactive, ActionClearRequests | ActionStopTimer
		}
		var act Action
		if in.RequestActive {
			act |= ActionClearRequests
		}
		if in.TimerElapsed {
			return StateWarmup, act | ActionWarmup
		}
		if in.SleepOK {
			act |= ActionSleep
		}
		return StateNoChange, act

	case StateWarmup:
		if in.WarmupElapsed {
			return StateMeasure, ActionMeasure
		}

	case StateMeasure:
		return StateTransmit, ActionTransmit | ActionPowerDown

	case StateTransmit:
		if in.TxDone {
			if in.TxOK {
				return StateSleeping, ActionAdvanceCadence
			}
			return StateSleeping, ActionNone
		}
	}
	return StateNoChange, ActionNone
}
