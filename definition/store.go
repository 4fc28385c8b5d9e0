package definition

import (
	"fmt"

	"github.com/mohitkumar/procflow/model"
)

// Store looks up process and activity definitions. An empty frameworkId
// searches every loaded framework in load order and returns the first match.
type Store interface {
	GetProcess(id string, frameworkId string) (*model.Process, bool)
	GetActivity(id string, frameworkId string) (*model.Activity, bool)
	// LocateProcess is GetProcess that also reports the framework the
	// process was found in.
	LocateProcess(id string, frameworkId string) (string, *model.Process, bool)
	SearchProcesses(text string) []*model.Process
	SearchActivities(text string) []*model.Activity
	FindActivitiesByCapability(capability model.Capability) []*model.Activity
	GetFramework(id string) (*model.Framework, bool)
	Frameworks() []*model.Framework
}

type frameworkIndex struct {
	framework  *model.Framework
	processes  map[string]*model.Process
	activities map[string]*model.Activity
	// processes and activities in depth first declaration order
	processOrder  []*model.Process
	activityOrder []*model.Activity
}

// Registry is the in-memory Store. Frameworks are added while loading; once
// the registry is handed to an engine it is only read.
type Registry struct {
	frameworks []*frameworkIndex
	byId       map[string]*frameworkIndex
}

var _ Store = new(Registry)

func NewRegistry(frameworks ...*model.Framework) (*Registry, error) {
	r := &Registry{byId: make(map[string]*frameworkIndex)}
	for _, fw := range frameworks {
		if err := r.Add(fw); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add validates and indexes a framework.
func (r *Registry) Add(fw *model.Framework) error {
	if err := Validate(fw); err != nil {
		return err
	}
	if _, ok := r.byId[fw.Id]; ok {
		return fmt.Errorf("definition: framework %s already loaded", fw.Id)
	}
	idx := &frameworkIndex{
		framework:  fw,
		processes:  make(map[string]*model.Process),
		activities: make(map[string]*model.Activity),
	}
	for _, root := range fw.Processes {
		root.Walk(func(p *model.Process) {
			idx.processes[p.Id] = p
			idx.processOrder = append(idx.processOrder, p)
			for _, a := range p.Activities {
				idx.activities[a.Id] = a
				idx.activityOrder = append(idx.activityOrder, a)
			}
		})
	}
	r.frameworks = append(r.frameworks, idx)
	r.byId[fw.Id] = idx
	return nil
}

func (r *Registry) candidates(frameworkId string) []*frameworkIndex {
	if frameworkId == "" {
		return r.frameworks
	}
	if idx, ok := r.byId[frameworkId]; ok {
		return []*frameworkIndex{idx}
	}
	return nil
}

func (r *Registry) GetProcess(id string, frameworkId string) (*model.Process, bool) {
	_, p, ok := r.LocateProcess(id, frameworkId)
	return p, ok
}

func (r *Registry) LocateProcess(id string, frameworkId string) (string, *model.Process, bool) {
	for _, idx := range r.candidates(frameworkId) {
		if p, ok := idx.processes[id]; ok {
			return idx.framework.Id, p, true
		}
	}
	return "", nil, false
}

func (r *Registry) GetActivity(id string, frameworkId string) (*model.Activity, bool) {
	for _, idx := range r.candidates(frameworkId) {
		if a, ok := idx.activities[id]; ok {
			return a, true
		}
	}
	return nil, false
}

func (r *Registry) SearchProcesses(text string) []*model.Process {
	var out []*model.Process
	for _, idx := range r.frameworks {
		for _, p := range idx.processOrder {
			if p.Matches(text) {
				out = append(out, p)
			}
		}
	}
	return out
}

func (r *Registry) SearchActivities(text string) []*model.Activity {
	var out []*model.Activity
	for _, idx := range r.frameworks {
		for _, a := range idx.activityOrder {
			if a.Matches(text) {
				out = append(out, a)
			}
		}
	}
	return out
}

func (r *Registry) FindActivitiesByCapability(capability model.Capability) []*model.Activity {
	var out []*model.Activity
	for _, idx := range r.frameworks {
		for _, a := range idx.activityOrder {
			if a.RequiresCapability(capability) {
				out = append(out, a)
			}
		}
	}
	return out
}

func (r *Registry) GetFramework(id string) (*model.Framework, bool) {
	idx, ok := r.byId[id]
	if !ok {
		return nil, false
	}
	return idx.framework, true
}

func (r *Registry) Frameworks() []*model.Framework {
	out := make([]*model.Framework, 0, len(r.frameworks))
	for _, idx := range r.frameworks {
		out = append(out, idx.framework)
	}
	return out
}
