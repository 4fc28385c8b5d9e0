package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dop251/goja"
	"github.com/mohitkumar/procflow/agent"
	"github.com/mohitkumar/procflow/definition"
	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/model"
	"go.uber.org/zap"
)

var _ agent.Agent = new(Agent)

var ErrNotAnObject = errors.New("script result is not an object")

// Agent runs one JavaScript snippet per activity. The activity input is bound
// to $ before the snippet runs and whatever $ holds afterwards is the output.
type Agent struct {
	id           string
	capabilities []model.Capability
	timeout      time.Duration
	programs     map[string]*goja.Program
	requirements map[string]agent.Requirements
	activityIds  []string
}

// New compiles every script of conf. When store is given the requirements of
// each activity come from its definition.
func New(conf Config, store definition.Store) (*Agent, error) {
	if conf.Id == "" {
		return nil, fmt.Errorf("script agent id is required")
	}
	a := &Agent{
		id:           conf.Id,
		timeout:      conf.Timeout,
		programs:     make(map[string]*goja.Program, len(conf.Activities)),
		requirements: make(map[string]agent.Requirements, len(conf.Activities)),
	}
	for _, c := range conf.Capabilities {
		a.capabilities = append(a.capabilities, model.Capability(c))
	}
	for activityId, source := range conf.Activities {
		if len(source) == 0 {
			return nil, fmt.Errorf("agent=%s, activity=%s, script can not be empty", conf.Id, activityId)
		}
		prg, err := goja.Compile(activityId, source, false)
		if err != nil {
			return nil, fmt.Errorf("agent=%s, activity=%s: %w", conf.Id, activityId, err)
		}
		a.programs[activityId] = prg
		req := agent.Requirements{Capabilities: a.capabilities}
		if store != nil {
			if act, ok := store.GetActivity(activityId, conf.Framework); ok {
				req = agent.RequirementsOf(act)
			} else {
				logger.Warn("script agent activity has no definition", zap.String("agent", conf.Id), zap.String("activity", activityId))
			}
		}
		a.requirements[activityId] = req
		a.activityIds = append(a.activityIds, activityId)
	}
	sort.Strings(a.activityIds)
	return a, nil
}

func (a *Agent) GetId() string {
	return a.id
}

func (a *Agent) GetCapabilities() []model.Capability {
	return append([]model.Capability(nil), a.capabilities...)
}

func (a *Agent) GetSupportedActivities() []agent.SupportedActivity {
	out := make([]agent.SupportedActivity, 0, len(a.activityIds))
	for _, id := range a.activityIds {
		out = append(out, agent.SupportedActivity{ActivityId: id, Requirements: a.requirements[id]})
	}
	return out
}

func (a *Agent) GetActivityRequirements(activityId string) (agent.Requirements, bool) {
	req, ok := a.requirements[activityId]
	return req, ok
}

func (a *Agent) VerifyActivityResult(activityId string, result map[string]any) bool {
	req, ok := a.requirements[activityId]
	return ok && req.HasOutputs(result)
}

func (a *Agent) ExecuteActivity(ctx context.Context, activityId string, input map[string]any) (map[string]any, error) {
	prg, ok := a.programs[activityId]
	if !ok {
		return nil, fmt.Errorf("%w: agent=%s, activity=%s", agent.ErrUnsupportedActivity, a.id, activityId)
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	logger.Info("running script", zap.String("agent", a.id), zap.String("activity", activityId))
	if input == nil {
		input = map[string]any{}
	}
	data, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	vm := goja.New()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	if _, err := vm.RunString(fmt.Sprintf("var $ = %s;", data)); err != nil {
		return nil, fmt.Errorf("error executing javascript %w", err)
	}
	if _, err := vm.RunProgram(prg); err != nil {
		return nil, fmt.Errorf("error executing javascript %w", err)
	}
	res, err := json.Marshal(vm.Get("$").Export())
	if err != nil {
		return nil, err
	}
	var output map[string]any
	if err := json.Unmarshal(res, &output); err != nil || output == nil {
		return nil, ErrNotAnObject
	}
	return output, nil
}
