package engine

import (
	"sync"
	"testing"

	"github.com/mohitkumar/procflow/definition"
	"github.com/mohitkumar/procflow/interpreter"
	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/persistence"
	"github.com/mohitkumar/procflow/persistence/memory"
	"github.com/mohitkumar/procflow/util"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu     sync.Mutex
	events []model.WorkflowEvent
}

func (r *recorder) OnEvent(event model.WorkflowEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) ofType(t model.EventType) []model.WorkflowEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.WorkflowEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	engine   *WorkflowEngine
	storage  persistence.Storage
	events   *recorder
	registry *definition.Registry
}

func testLogger(t *testing.T) {
	logger.Set(zaptest.NewLogger(t))
	t.Cleanup(func() { logger.Set(zap.NewNop()) })
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.BackoffInitial = 0
	opts.BackoffMax = 0
	return opts
}

func newFixture(t *testing.T, opts Options, processes ...*model.Process) *fixture {
	t.Helper()
	storage := memory.NewMemoryStorage(util.NewJsonEncoderDecoder[model.InstanceTree]())
	return newFixtureWithStorage(t, opts, storage, processes...)
}

func newFixtureWithStorage(t *testing.T, opts Options, storage persistence.Storage, processes ...*model.Process) *fixture {
	t.Helper()
	testLogger(t)
	reg, err := definition.NewRegistry(&model.Framework{Id: "fw", Name: "test", Processes: processes})
	require.NoError(t, err)
	eng := NewWorkflowEngine(interpreter.NewInterpreter(reg), storage, opts)
	events := &recorder{}
	eng.AddListener(events)
	return &fixture{engine: eng, storage: storage, events: events, registry: reg}
}

func activity(id string, caps []model.Capability, inputs []model.Input, outputs ...string) *model.Activity {
	a := &model.Activity{Id: id, Name: id, Capabilities: caps, Inputs: inputs}
	for _, o := range outputs {
		a.Outputs = append(a.Outputs, model.Output{Name: o})
	}
	return a
}

// activityInstance finds the instance id of activityId in the tree of rootId.
func (f *fixture) activityInstance(t *testing.T, rootId string, activityId string) *model.ActivityInstance {
	t.Helper()
	tree, err := f.engine.GetInstanceTree(rootId)
	require.NoError(t, err)
	for _, a := range tree.Activities {
		if a.ActivityId == activityId {
			return a
		}
	}
	t.Fatalf("activity %s not in tree", activityId)
	return nil
}

func (f *fixture) assignmentIds(agentId string) []string {
	var ids []string
	for _, a := range f.engine.GetAgentAssignments(agentId) {
		ids = append(ids, a.ActivityId)
	}
	return ids
}

// complete starts and completes the single assignment of agentId for
// activityId.
func (f *fixture) complete(t *testing.T, agentId string, activityId string, outputs map[string]any) {
	t.Helper()
	for _, a := range f.engine.GetAgentAssignments(agentId) {
		if a.ActivityId == activityId {
			require.NoError(t, f.engine.StartActivity(a.ActivityInstanceId))
			require.NoError(t, f.engine.CompleteActivity(a.ActivityInstanceId, outputs))
			return
		}
	}
	t.Fatalf("no assignment of %s for %s", activityId, agentId)
}

func (f *fixture) fail(t *testing.T, agentId string, activityId string, msg string) {
	t.Helper()
	for _, a := range f.engine.GetAgentAssignments(agentId) {
		if a.ActivityId == activityId {
			require.NoError(t, f.engine.StartActivity(a.ActivityInstanceId))
			require.NoError(t, f.engine.FailActivity(a.ActivityInstanceId, msg))
			return
		}
	}
	t.Fatalf("no assignment of %s for %s", activityId, agentId)
}
