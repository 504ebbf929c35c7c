package activity

import (
	"encoding/json"
	"fmt"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseError
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	case PhaseReady:
		return "ready"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// FetchState is what the dashboard card renders: Message is set only in the
// error phase, Metrics only in the ready phase.
type FetchState struct {
	Phase   Phase            `json:"phase"`
	Message string           `json:"message,omitempty"`
	Metrics *ActivityMetrics `json:"metrics,omitempty"`
}

func IdleState() FetchState {
	return FetchState{Phase: PhaseIdle}
}

func LoadingState() FetchState {
	return FetchState{Phase: PhaseLoading}
}

func ErrorState(message string) FetchState {
	return FetchState{Phase: PhaseError, Message: message}
}

func ReadyState(m ActivityMetrics) FetchState {
	return FetchState{Phase: PhaseReady, Metrics: &m}
}
