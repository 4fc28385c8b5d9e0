package definition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mohitkumar/procflow/condition"
	"github.com/mohitkumar/procflow/model"
)

// Validate checks the structural rules of a framework: ids present, process
// and activity ids unique within the framework, input and output names unique
// per activity and every condition parsable. All problems are reported.
func Validate(fw *model.Framework) error {
	if fw == nil {
		return errors.New("definition: framework is nil")
	}
	var errs []error
	if strings.TrimSpace(fw.Id) == "" {
		errs = append(errs, errors.New("framework id is required"))
	}
	processIds := make(map[string]bool)
	activityIds := make(map[string]bool)
	for _, root := range fw.Processes {
		if root == nil {
			errs = append(errs, errors.New("nil process"))
			continue
		}
		root.Walk(func(p *model.Process) {
			errs = append(errs, validateProcess(p, processIds, activityIds)...)
		})
	}
	if len(errs) > 0 {
		return fmt.Errorf("definition: framework %q: %w", fw.Id, errors.Join(errs...))
	}
	return nil
}

func validateProcess(p *model.Process, processIds, activityIds map[string]bool) []error {
	var errs []error
	if strings.TrimSpace(p.Id) == "" {
		errs = append(errs, fmt.Errorf("process %q: id is required", p.Name))
	} else if processIds[p.Id] {
		errs = append(errs, fmt.Errorf("process id %s is duplicate", p.Id))
	}
	processIds[p.Id] = true
	for _, sub := range p.SubProcesses {
		if sub == nil {
			errs = append(errs, fmt.Errorf("process %s: nil sub-process", p.Id))
		}
	}
	for _, a := range p.Activities {
		if a == nil {
			errs = append(errs, fmt.Errorf("process %s: nil activity", p.Id))
			continue
		}
		if strings.TrimSpace(a.Id) == "" {
			errs = append(errs, fmt.Errorf("process %s: activity %q: id is required", p.Id, a.Name))
			continue
		}
		if activityIds[a.Id] {
			errs = append(errs, fmt.Errorf("activity id %s is duplicate", a.Id))
		}
		activityIds[a.Id] = true
		errs = append(errs, validateActivity(a)...)
	}
	return errs
}

func validateActivity(a *model.Activity) []error {
	var errs []error
	inputs := make(map[string]bool)
	for _, in := range a.Inputs {
		if in.Name == "" {
			errs = append(errs, fmt.Errorf("activity %s: input name is required", a.Id))
		} else if inputs[in.Name] {
			errs = append(errs, fmt.Errorf("activity %s: input %s is duplicate", a.Id, in.Name))
		}
		inputs[in.Name] = true
		if in.Condition != "" {
			if _, err := condition.Parse(in.Condition); err != nil {
				errs = append(errs, fmt.Errorf("activity %s: input %s: %w", a.Id, in.Name, err))
			}
		}
	}
	outputs := make(map[string]bool)
	for _, out := range a.Outputs {
		if out.Name == "" {
			errs = append(errs, fmt.Errorf("activity %s: output name is required", a.Id))
		} else if outputs[out.Name] {
			errs = append(errs, fmt.Errorf("activity %s: output %s is duplicate", a.Id, out.Name))
		}
		outputs[out.Name] = true
	}
	for _, c := range a.Capabilities {
		if strings.TrimSpace(string(c)) == "" {
			errs = append(errs, fmt.Errorf("activity %s: empty capability", a.Id))
		}
	}
	if a.Condition != "" {
		if _, err := condition.Parse(a.Condition); err != nil {
			errs = append(errs, fmt.Errorf("activity %s: %w", a.Id, err))
		}
	}
	return errs
}
