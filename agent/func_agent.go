package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/mohitkumar/procflow/model"
)

var _ Agent = new(FuncAgent)

type ExecuteFunc func(ctx context.Context, activityId string, input map[string]any) (map[string]any, error)

type VerifyFunc func(activityId string, result map[string]any) bool

// FuncAgent adapts a plain function to the Agent contract. Without declared
// activities it accepts every activity it is assigned.
type FuncAgent struct {
	id           string
	capabilities []model.Capability
	activities   []SupportedActivity
	execute      ExecuteFunc
	verify       VerifyFunc
	timeout      time.Duration
}

func NewFuncAgent(id string, fn ExecuteFunc) *FuncAgent {
	return &FuncAgent{
		id:      id,
		execute: fn,
	}
}

func (a *FuncAgent) WithCapabilities(capabilities ...model.Capability) *FuncAgent {
	a.capabilities = append(a.capabilities, capabilities...)
	return a
}

func (a *FuncAgent) WithActivity(activityId string, req Requirements) *FuncAgent {
	a.activities = append(a.activities, SupportedActivity{ActivityId: activityId, Requirements: req})
	return a
}

func (a *FuncAgent) WithVerifier(verify VerifyFunc) *FuncAgent {
	a.verify = verify
	return a
}

func (a *FuncAgent) WithTimeout(timeout time.Duration) *FuncAgent {
	a.timeout = timeout
	return a
}

func (a *FuncAgent) GetId() string {
	return a.id
}

func (a *FuncAgent) GetCapabilities() []model.Capability {
	return append([]model.Capability(nil), a.capabilities...)
}

func (a *FuncAgent) GetSupportedActivities() []SupportedActivity {
	return append([]SupportedActivity(nil), a.activities...)
}

func (a *FuncAgent) GetActivityRequirements(activityId string) (Requirements, bool) {
	for _, sa := range a.activities {
		if sa.ActivityId == activityId {
			return sa.Requirements, true
		}
	}
	if len(a.activities) == 0 {
		return Requirements{Capabilities: a.GetCapabilities()}, true
	}
	return Requirements{}, false
}

func (a *FuncAgent) ExecuteActivity(ctx context.Context, activityId string, input map[string]any) (map[string]any, error) {
	if _, ok := a.GetActivityRequirements(activityId); !ok {
		return nil, fmt.Errorf("%w: agent=%s, activity=%s", ErrUnsupportedActivity, a.id, activityId)
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.execute(ctx, activityId, input)
}

// VerifyActivityResult uses the configured verifier, or checks that every
// declared output is present.
func (a *FuncAgent) VerifyActivityResult(activityId string, result map[string]any) bool {
	if a.verify != nil {
		return a.verify(activityId, result)
	}
	req, ok := a.GetActivityRequirements(activityId)
	if !ok {
		return false
	}
	return req.HasOutputs(result)
}
