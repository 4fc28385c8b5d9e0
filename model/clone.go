package model

import "time"

// CopyValue deep copies the map and slice containers of a context value.
// Scalars are shared as they are immutable.
func CopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CopyContext(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CopyValue(item)
		}
		return out
	default:
		return v
	}
}

func CopyContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		out[k] = CopyValue(v)
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (a *ActivityInstance) Clone() *ActivityInstance {
	c := *a
	c.Context = CopyContext(a.Context)
	c.StartedAt = copyTime(a.StartedAt)
	c.CompletedAt = copyTime(a.CompletedAt)
	return &c
}

func (p *ProcessInstance) Clone() *ProcessInstance {
	c := *p
	c.Context = CopyContext(p.Context)
	if p.ActivityInstances != nil {
		c.ActivityInstances = make(map[string]string, len(p.ActivityInstances))
		for k, v := range p.ActivityInstances {
			c.ActivityInstances[k] = v
		}
	}
	c.ActivityOrder = append([]string(nil), p.ActivityOrder...)
	c.SubProcessInstances = append([]string(nil), p.SubProcessInstances...)
	c.StartedAt = copyTime(p.StartedAt)
	c.CompletedAt = copyTime(p.CompletedAt)
	return &c
}

func (t *InstanceTree) Clone() *InstanceTree {
	c := NewInstanceTree()
	c.RootId = t.RootId
	for id, p := range t.Processes {
		c.Processes[id] = p.Clone()
	}
	for id, a := range t.Activities {
		c.Activities[id] = a.Clone()
	}
	return c
}
