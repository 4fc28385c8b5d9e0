package interpreter

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mohitkumar/procflow/definition"
	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/util"
	"go.uber.org/zap"
)

var ErrProcessNotFound = errors.New("process not found")
var ErrActivityNotFound = errors.New("activity not found")
var ErrInstanceNotFound = errors.New("process instance not found in tree")

type Interpreter struct {
	store definition.Store
	newId func() string
}

func NewInterpreter(store definition.Store) *Interpreter {
	return &Interpreter{
		store: store,
		newId: uuid.NewString,
	}
}

func (i *Interpreter) Store() definition.Store {
	return i.store
}

// CreateInstance mirrors the definition tree of processId into a fresh
// instance tree. Every activity and sub-process starts NOT_STARTED; the root
// context is a copy of initialContext.
func (i *Interpreter) CreateInstance(processId string, frameworkId string, initialContext map[string]any) (*model.InstanceTree, error) {
	fwId, process, ok := i.store.LocateProcess(processId, frameworkId)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, processId)
	}
	tree := model.NewInstanceTree()
	root := i.mirror(tree, process, fwId, "")
	tree.RootId = root.Id
	for k, v := range initialContext {
		root.Context[k] = v
	}
	return tree, nil
}

func (i *Interpreter) mirror(tree *model.InstanceTree, process *model.Process, frameworkId string, parentId string) *model.ProcessInstance {
	now := model.Now()
	pi := &model.ProcessInstance{
		Id:                i.newId(),
		ProcessId:         process.Id,
		FrameworkId:       frameworkId,
		ParentId:          parentId,
		Status:            model.NOT_STARTED,
		Context:           make(map[string]any),
		ActivityInstances: make(map[string]string),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	tree.Processes[pi.Id] = pi
	for _, act := range process.Activities {
		ai := &model.ActivityInstance{
			Id:                i.newId(),
			ActivityId:        act.Id,
			ProcessInstanceId: pi.Id,
			Status:            model.NOT_STARTED,
			Context:           make(map[string]any),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		tree.Activities[ai.Id] = ai
		pi.ActivityInstances[act.Id] = ai.Id
		pi.ActivityOrder = append(pi.ActivityOrder, ai.Id)
	}
	for _, sub := range process.SubProcesses {
		child := i.mirror(tree, sub, frameworkId, pi.Id)
		pi.SubProcessInstances = append(pi.SubProcessInstances, child.Id)
	}
	return pi
}

// ResolveInputs builds the input set of an activity from scope. A missing
// input falls back to its default; string defaults may reference scope values
// with {$.path} templates. Required inputs that cannot be resolved are left
// out with a warning.
func (i *Interpreter) ResolveInputs(activityId string, frameworkId string, scope map[string]any) (map[string]any, error) {
	act, ok := i.store.GetActivity(activityId, frameworkId)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, activityId)
	}
	inputs := make(map[string]any, len(act.Inputs))
	for _, in := range act.Inputs {
		if v, ok := scope[in.Name]; ok {
			inputs[in.Name] = v
			continue
		}
		if in.HasDefault() {
			inputs[in.Name] = util.ResolveValue(scope, in.Default)
			continue
		}
		if in.Required {
			logger.Warn("required input missing", zap.String("activity", activityId), zap.String("input", in.Name))
		}
	}
	return inputs, nil
}

// MergeOutputs returns a copy of ctx with the declared outputs of the
// activity taken from outputs. Undeclared keys are dropped.
func (i *Interpreter) MergeOutputs(activityId string, frameworkId string, outputs map[string]any, ctx map[string]any) (map[string]any, error) {
	act, ok := i.store.GetActivity(activityId, frameworkId)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, activityId)
	}
	merged := make(map[string]any, len(ctx)+len(act.Outputs))
	for k, v := range ctx {
		merged[k] = v
	}
	for _, out := range act.Outputs {
		if v, ok := outputs[out.Name]; ok {
			merged[out.Name] = v
		}
	}
	return merged, nil
}

// Scope is the context visible to activities of a process instance: the
// root context overlaid by each descendant down to the instance itself.
func Scope(tree *model.InstanceTree, processInstanceId string) map[string]any {
	chain := tree.Ancestors(processInstanceId)
	scope := make(map[string]any)
	for idx := len(chain) - 1; idx >= 0; idx-- {
		for k, v := range chain[idx].Context {
			scope[k] = v
		}
	}
	return scope
}
