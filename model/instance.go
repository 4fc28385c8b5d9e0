package model

import (
	"fmt"
	"time"
)

// Now is the clock used for instance timestamps.
var Now = func() time.Time {
	return time.Now().UTC()
}

type ActivityInstance struct {
	Id                string         `json:"id"`
	ActivityId        string         `json:"activityId"`
	ProcessInstanceId string         `json:"processInstanceId"`
	Status            Status         `json:"status"`
	Context           map[string]any `json:"context"`
	AgentId           string         `json:"agentId,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	StartedAt         *time.Time     `json:"startedAt,omitempty"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty"`
}

type InvalidTransitionError struct {
	Id   string
	From Status
	To   Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for %s", e.From, e.To, e.Id)
}

// SetStatus moves the activity forward. StartedAt and CompletedAt are only
// written on the first entry into IN_PROGRESS and into a terminal state.
func (a *ActivityInstance) SetStatus(status Status) error {
	if a.Status == status {
		return nil
	}
	if !canTransition(a.Status, status) {
		return InvalidTransitionError{Id: a.Id, From: a.Status, To: status}
	}
	now := Now()
	a.Status = status
	a.UpdatedAt = now
	if status == IN_PROGRESS && a.StartedAt == nil {
		a.StartedAt = &now
	}
	if status.IsTerminal() && a.CompletedAt == nil {
		a.CompletedAt = &now
	}
	return nil
}

type ProcessInstance struct {
	Id          string         `json:"id"`
	ProcessId   string         `json:"processId"`
	FrameworkId string         `json:"frameworkId,omitempty"`
	ParentId    string         `json:"parentId,omitempty"`
	Status      Status         `json:"status"`
	Context     map[string]any `json:"context"`
	// activity id -> activity instance id for the direct activities.
	ActivityInstances   map[string]string `json:"activityInstances"`
	ActivityOrder       []string          `json:"activityOrder"`
	SubProcessInstances []string          `json:"subProcessInstances"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
	StartedAt           *time.Time        `json:"startedAt,omitempty"`
	CompletedAt         *time.Time        `json:"completedAt,omitempty"`
}

// SetStatus applies a process level status. Processes are driven by the
// engine and may be forced by callers, so every change is accepted.
func (p *ProcessInstance) SetStatus(status Status) {
	if p.Status == status {
		return
	}
	now := Now()
	p.Status = status
	p.UpdatedAt = now
	if status == IN_PROGRESS && p.StartedAt == nil {
		p.StartedAt = &now
	}
	if status.IsTerminal() && p.CompletedAt == nil {
		p.CompletedAt = &now
	}
}

// InstanceTree is the runtime state of one top level process run. Process and
// activity instances are stored flat and linked by id.
type InstanceTree struct {
	RootId     string                       `json:"rootId"`
	Processes  map[string]*ProcessInstance  `json:"processes"`
	Activities map[string]*ActivityInstance `json:"activities"`
}

func NewInstanceTree() *InstanceTree {
	return &InstanceTree{
		Processes:  make(map[string]*ProcessInstance),
		Activities: make(map[string]*ActivityInstance),
	}
}

func (t *InstanceTree) Root() *ProcessInstance {
	return t.Processes[t.RootId]
}

func (t *InstanceTree) Process(id string) (*ProcessInstance, bool) {
	p, ok := t.Processes[id]
	return p, ok
}

func (t *InstanceTree) Activity(id string) (*ActivityInstance, bool) {
	a, ok := t.Activities[id]
	return a, ok
}

// Ancestors returns the chain from the given process instance up to the root,
// starting with the instance itself.
func (t *InstanceTree) Ancestors(processInstanceId string) []*ProcessInstance {
	var chain []*ProcessInstance
	id := processInstanceId
	for id != "" {
		p, ok := t.Processes[id]
		if !ok {
			break
		}
		chain = append(chain, p)
		id = p.ParentId
	}
	return chain
}

// WalkProcesses visits the process instance and its descendants depth first.
func (t *InstanceTree) WalkProcesses(processInstanceId string, fn func(*ProcessInstance)) {
	p, ok := t.Processes[processInstanceId]
	if !ok {
		return
	}
	fn(p)
	for _, sub := range p.SubProcessInstances {
		t.WalkProcesses(sub, fn)
	}
}

// ActivitiesUnder flattens the activity instances of a process instance and
// all of its descendants: own activities in declared order, then each
// sub-process recursively.
func (t *InstanceTree) ActivitiesUnder(processInstanceId string) []*ActivityInstance {
	var out []*ActivityInstance
	t.WalkProcesses(processInstanceId, func(p *ProcessInstance) {
		for _, id := range p.ActivityOrder {
			if a, ok := t.Activities[id]; ok {
				out = append(out, a)
			}
		}
	})
	return out
}

// InstanceIds lists every process and activity instance id in the tree.
func (t *InstanceTree) InstanceIds() []string {
	ids := make([]string, 0, len(t.Processes)+len(t.Activities))
	for id := range t.Processes {
		ids = append(ids, id)
	}
	for id := range t.Activities {
		ids = append(ids, id)
	}
	return ids
}
