package interpreter

import (
	"fmt"

	"github.com/mohitkumar/procflow/condition"
	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/model"
	"go.uber.org/zap"
)

type DependencyType string

const FOLLOWS DependencyType = "follows"
const DATA_DEPENDENCY DependencyType = "data_dependency"

// Dependency is an edge between two activity instances of a plan. Source
// must complete before Target unless the edge is optional.
type Dependency struct {
	Source    string
	Target    string
	Type      DependencyType
	Name      string
	Optional  bool
	Condition *condition.Expression
	condErr   error
}

type ExecutionPlan struct {
	ProcessInstanceId string
	Activities        []*model.ActivityInstance
	Dependencies      []*Dependency
	tree              *model.InstanceTree
	incoming          map[string][]*Dependency
	outgoing          map[string][]*Dependency
}

// CreatePlan flattens the activities of the process instance and its
// descendants and derives follows edges from declaration order and data
// dependencies from matching output and input names.
func (i *Interpreter) CreatePlan(tree *model.InstanceTree, processInstanceId string) (*ExecutionPlan, error) {
	pi, ok := tree.Process(processInstanceId)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, processInstanceId)
	}
	plan := &ExecutionPlan{
		ProcessInstanceId: processInstanceId,
		Activities:        tree.ActivitiesUnder(processInstanceId),
		tree:              tree,
		incoming:          make(map[string][]*Dependency),
		outgoing:          make(map[string][]*Dependency),
	}
	defs := make(map[string]*model.Activity, len(plan.Activities))
	for _, ai := range plan.Activities {
		act, ok := i.store.GetActivity(ai.ActivityId, pi.FrameworkId)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, ai.ActivityId)
		}
		defs[ai.Id] = act
	}

	tree.WalkProcesses(processInstanceId, func(p *model.ProcessInstance) {
		for idx := 1; idx < len(p.ActivityOrder); idx++ {
			target := p.ActivityOrder[idx]
			dep := &Dependency{
				Source: p.ActivityOrder[idx-1],
				Target: target,
				Type:   FOLLOWS,
			}
			dep.setCondition(defs[target].Condition)
			plan.add(dep)
		}
	})

	for _, producer := range plan.Activities {
		for _, out := range defs[producer.Id].Outputs {
			for _, consumer := range plan.Activities {
				if consumer.Id == producer.Id {
					continue
				}
				for _, in := range defs[consumer.Id].Inputs {
					if in.Name != out.Name {
						continue
					}
					dep := &Dependency{
						Source:   producer.Id,
						Target:   consumer.Id,
						Type:     DATA_DEPENDENCY,
						Name:     in.Name,
						Optional: !in.Required,
					}
					dep.setCondition(in.Condition)
					plan.add(dep)
				}
			}
		}
	}
	return plan, nil
}

func (d *Dependency) setCondition(expr string) {
	if expr == "" {
		return
	}
	d.Condition, d.condErr = condition.Parse(expr)
}

func (p *ExecutionPlan) add(dep *Dependency) {
	p.Dependencies = append(p.Dependencies, dep)
	p.incoming[dep.Target] = append(p.incoming[dep.Target], dep)
	p.outgoing[dep.Source] = append(p.outgoing[dep.Source], dep)
}

func (p *ExecutionPlan) Incoming(activityInstanceId string) []*Dependency {
	return p.incoming[activityInstanceId]
}

func (p *ExecutionPlan) Outgoing(activityInstanceId string) []*Dependency {
	return p.outgoing[activityInstanceId]
}

// ReadyActivities returns the NOT_STARTED activities whose incoming edges
// are all optional or satisfied, in plan order.
func (p *ExecutionPlan) ReadyActivities() []*model.ActivityInstance {
	var ready []*model.ActivityInstance
	for _, ai := range p.Activities {
		if ai.Status != model.NOT_STARTED {
			continue
		}
		if p.satisfied(ai) {
			ready = append(ready, ai)
		}
	}
	return ready
}

func (p *ExecutionPlan) satisfied(target *model.ActivityInstance) bool {
	for _, dep := range p.incoming[target.Id] {
		if dep.Optional {
			continue
		}
		source, ok := p.tree.Activity(dep.Source)
		if !ok || source.Status != model.COMPLETED {
			return false
		}
		if !p.conditionHolds(dep, source, target) {
			return false
		}
	}
	return true
}

func (p *ExecutionPlan) conditionHolds(dep *Dependency, source, target *model.ActivityInstance) bool {
	if dep.condErr != nil {
		logger.Warn("dependency condition invalid", zap.String("source", dep.Source), zap.String("target", dep.Target), zap.Error(dep.condErr))
		return false
	}
	if dep.Condition == nil {
		return true
	}
	ok, err := dep.Condition.Eval(condition.Env{
		Status:  source.Status,
		Source:  source.Context,
		Context: Scope(p.tree, target.ProcessInstanceId),
	})
	if err != nil {
		logger.Warn("dependency condition failed", zap.String("source", dep.Source), zap.String("target", dep.Target), zap.Error(err))
		return false
	}
	return ok
}

// IsFatal reports whether a FAILED activity fails the plan: it has no
// outgoing edges or at least one of them is required.
func (p *ExecutionPlan) IsFatal(activityInstanceId string) bool {
	out := p.outgoing[activityInstanceId]
	if len(out) == 0 {
		return true
	}
	for _, dep := range out {
		if !dep.Optional {
			return true
		}
	}
	return false
}

func (p *ExecutionPlan) IsFailed() bool {
	for _, ai := range p.Activities {
		if ai.Status == model.FAILED && p.IsFatal(ai.Id) {
			return true
		}
	}
	return false
}

// IsComplete is true when every activity is COMPLETED or CANCELED. A FAILED
// activity that is not fatal counts as settled.
func (p *ExecutionPlan) IsComplete() bool {
	for _, ai := range p.Activities {
		switch ai.Status {
		case model.COMPLETED, model.CANCELED:
		case model.FAILED:
			if p.IsFatal(ai.Id) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
