package agent

import (
	"context"
	"errors"

	"github.com/mohitkumar/procflow/model"
)

var ErrUnsupportedActivity = errors.New("activity not supported by agent")

// Requirements describe what an agent needs to run an activity and what it
// promises to return.
type Requirements struct {
	Capabilities []model.Capability `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Inputs       []string           `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs      []string           `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

type SupportedActivity struct {
	ActivityId   string       `json:"activityId" yaml:"activityId"`
	Requirements Requirements `json:"requirements" yaml:"requirements"`
}

// Agent executes activities handed out by the engine. ExecuteActivity is
// called synchronously by the manager; any error it returns fails the
// activity.
type Agent interface {
	GetId() string
	GetCapabilities() []model.Capability
	GetSupportedActivities() []SupportedActivity
	ExecuteActivity(ctx context.Context, activityId string, input map[string]any) (map[string]any, error)
	GetActivityRequirements(activityId string) (Requirements, bool)
	VerifyActivityResult(activityId string, result map[string]any) bool
}

// RequirementsOf derives the requirements of an activity from its
// definition.
func RequirementsOf(act *model.Activity) Requirements {
	return Requirements{
		Capabilities: append([]model.Capability(nil), act.Capabilities...),
		Inputs:       act.InputNames(),
		Outputs:      act.OutputNames(),
	}
}

// HasOutputs reports whether result carries every output the requirements
// declare.
func (r Requirements) HasOutputs(result map[string]any) bool {
	for _, out := range r.Outputs {
		if _, ok := result[out]; !ok {
			return false
		}
	}
	return true
}
