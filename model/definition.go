package model

import "strings"

// Capability identifies something an agent can do, e.g. "campaign.optimize".
type Capability string

type Framework struct {
	Id        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Version   string         `json:"version" yaml:"version"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Processes []*Process     `json:"processes" yaml:"processes"`
}

type Process struct {
	Id           string      `json:"id" yaml:"id"`
	Name         string      `json:"name" yaml:"name"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`
	Inputs       []Input     `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs      []Output    `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Metrics      []Metric    `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Roles        []string    `json:"roles,omitempty" yaml:"roles,omitempty"`
	Activities   []*Activity `json:"activities,omitempty" yaml:"activities,omitempty"`
	SubProcesses []*Process  `json:"subProcesses,omitempty" yaml:"subProcesses,omitempty"`
}

type Activity struct {
	Id             string       `json:"id" yaml:"id"`
	Name           string       `json:"name" yaml:"name"`
	Description    string       `json:"description,omitempty" yaml:"description,omitempty"`
	Inputs         []Input      `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs        []Output     `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Capabilities   []Capability `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	PreConditions  []string     `json:"preConditions,omitempty" yaml:"preConditions,omitempty"`
	PostConditions []string     `json:"postConditions,omitempty" yaml:"postConditions,omitempty"`
	// Condition guards the sequential edge from the previous activity of the process.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

type Input struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required" yaml:"required"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	// Condition guards every data dependency feeding this input.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

func (i Input) HasDefault() bool {
	return i.Default != nil
}

type Output struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type Metric struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Unit        string  `json:"unit,omitempty" yaml:"unit,omitempty"`
	Target      float64 `json:"target,omitempty" yaml:"target,omitempty"`
}

func (a *Activity) InputNames() []string {
	names := make([]string, 0, len(a.Inputs))
	for _, in := range a.Inputs {
		names = append(names, in.Name)
	}
	return names
}

func (a *Activity) OutputNames() []string {
	names := make([]string, 0, len(a.Outputs))
	for _, out := range a.Outputs {
		names = append(names, out.Name)
	}
	return names
}

func (a *Activity) HasOutput(name string) bool {
	for _, out := range a.Outputs {
		if out.Name == name {
			return true
		}
	}
	return false
}

// Matches does a case insensitive search over id, name and description.
func (a *Activity) Matches(text string) bool {
	return containsFold(text, a.Id, a.Name, a.Description)
}

func (p *Process) Matches(text string) bool {
	return containsFold(text, p.Id, p.Name, p.Description)
}

func (a *Activity) RequiresCapability(capability Capability) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Walk visits p and every sub-process below it, depth first.
func (p *Process) Walk(fn func(*Process)) {
	fn(p)
	for _, sub := range p.SubProcesses {
		sub.Walk(fn)
	}
}

func containsFold(text string, fields ...string) bool {
	needle := strings.ToLower(text)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
