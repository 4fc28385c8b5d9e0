package engine

import (
	"sort"

	"github.com/mohitkumar/procflow/model"
)

// agentRegistry maps capability tags to the agents offering them. Matching
// prefers the earliest registered agent.
type agentRegistry struct {
	seq          int
	position     map[string]int
	capabilities map[string][]model.Capability
	index        map[model.Capability]map[string]struct{}
}

func newAgentRegistry() *agentRegistry {
	return &agentRegistry{
		position:     make(map[string]int),
		capabilities: make(map[string][]model.Capability),
		index:        make(map[model.Capability]map[string]struct{}),
	}
}

// register adds or updates an agent. Re-registering keeps the original
// position and replaces the capability set.
func (r *agentRegistry) register(agentId string, capabilities []model.Capability) {
	if _, ok := r.position[agentId]; ok {
		r.dropFromIndex(agentId)
	} else {
		r.seq++
		r.position[agentId] = r.seq
	}
	caps := append([]model.Capability(nil), capabilities...)
	r.capabilities[agentId] = caps
	for _, c := range caps {
		agents, ok := r.index[c]
		if !ok {
			agents = make(map[string]struct{})
			r.index[c] = agents
		}
		agents[agentId] = struct{}{}
	}
}

func (r *agentRegistry) unregister(agentId string) bool {
	if _, ok := r.position[agentId]; !ok {
		return false
	}
	r.dropFromIndex(agentId)
	delete(r.capabilities, agentId)
	delete(r.position, agentId)
	return true
}

func (r *agentRegistry) dropFromIndex(agentId string) {
	for _, c := range r.capabilities[agentId] {
		if agents, ok := r.index[c]; ok {
			delete(agents, agentId)
			if len(agents) == 0 {
				delete(r.index, c)
			}
		}
	}
}

func (r *agentRegistry) has(agentId string) bool {
	_, ok := r.position[agentId]
	return ok
}

// match returns the first registered agent whose capabilities cover
// required. With nothing required any agent qualifies. Only the agents
// offering the rarest required tag are examined.
func (r *agentRegistry) match(required []model.Capability) (string, bool) {
	var candidates map[string]struct{}
	for _, c := range required {
		agents, ok := r.index[c]
		if !ok {
			return "", false
		}
		if candidates == nil || len(agents) < len(candidates) {
			candidates = agents
		}
	}
	best, bestPos := "", 0
	if candidates == nil {
		for agentId, pos := range r.position {
			if best == "" || pos < bestPos {
				best, bestPos = agentId, pos
			}
		}
		return best, best != ""
	}
	for agentId := range candidates {
		pos := r.position[agentId]
		if (best == "" || pos < bestPos) && r.covers(agentId, required) {
			best, bestPos = agentId, pos
		}
	}
	return best, best != ""
}

func (r *agentRegistry) covers(agentId string, required []model.Capability) bool {
	for _, c := range required {
		if _, ok := r.index[c][agentId]; !ok {
			return false
		}
	}
	return true
}

// agents lists registered agent ids in registration order.
func (r *agentRegistry) agents() []string {
	ids := make([]string, 0, len(r.position))
	for id := range r.position {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.position[ids[i]] < r.position[ids[j]] })
	return ids
}
