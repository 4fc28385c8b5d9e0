package interpreter

import (
	"errors"
	"testing"

	"github.com/mohitkumar/procflow/definition"
	"github.com/mohitkumar/procflow/model"
	"github.com/stretchr/testify/require"
)

func newTestInterpreter(t *testing.T, processes ...*model.Process) *Interpreter {
	t.Helper()
	reg, err := definition.NewRegistry(&model.Framework{Id: "fw", Processes: processes})
	require.NoError(t, err)
	return NewInterpreter(reg)
}

func act(id string, inputs []model.Input, outputs ...string) *model.Activity {
	a := &model.Activity{Id: id, Name: id, Inputs: inputs}
	for _, o := range outputs {
		a.Outputs = append(a.Outputs, model.Output{Name: o})
	}
	return a
}

func required(names ...string) []model.Input {
	var in []model.Input
	for _, n := range names {
		in = append(in, model.Input{Name: n, Required: true})
	}
	return in
}

func ids(list []*model.ActivityInstance) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ActivityId)
	}
	return out
}

func byActivity(t *testing.T, tree *model.InstanceTree, activityId string) *model.ActivityInstance {
	t.Helper()
	for _, a := range tree.Activities {
		if a.ActivityId == activityId {
			return a
		}
	}
	t.Fatalf("no instance for activity %s", activityId)
	return nil
}

func TestCreateInstance(t *testing.T) {
	proc := &model.Process{
		Id:         "launch",
		Activities: []*model.Activity{act("a", nil), act("b", nil)},
		SubProcesses: []*model.Process{
			{Id: "review", Activities: []*model.Activity{act("c", nil)}},
			{Id: "empty"},
		},
	}
	interp := newTestInterpreter(t, proc)

	tree, err := interp.CreateInstance("launch", "", map[string]any{"region": "emea"})
	require.NoError(t, err)
	root := tree.Root()
	require.Equal(t, "launch", root.ProcessId)
	require.Equal(t, "fw", root.FrameworkId)
	require.Equal(t, model.NOT_STARTED, root.Status)
	require.Equal(t, "emea", root.Context["region"])
	require.Len(t, tree.Processes, 3)
	require.Len(t, tree.Activities, 3)
	require.Len(t, root.SubProcessInstances, 2)

	review := tree.Processes[root.SubProcessInstances[0]]
	require.Equal(t, "review", review.ProcessId)
	require.Equal(t, root.Id, review.ParentId)
	require.Empty(t, review.Context)
	c := tree.Activities[review.ActivityInstances["c"]]
	require.Equal(t, review.Id, c.ProcessInstanceId)
	require.Equal(t, model.NOT_STARTED, c.Status)

	require.Equal(t, []string{"a", "b", "c"}, ids(tree.ActivitiesUnder(root.Id)))

	_, err = interp.CreateInstance("missing", "", nil)
	require.True(t, errors.Is(err, ErrProcessNotFound))
	_, err = interp.CreateInstance("launch", "other", nil)
	require.True(t, errors.Is(err, ErrProcessNotFound))
}

func TestSequentialOrdering(t *testing.T) {
	interp := newTestInterpreter(t, &model.Process{
		Id:         "p",
		Activities: []*model.Activity{act("A", nil), act("B", nil), act("C", nil)},
	})
	tree, err := interp.CreateInstance("p", "", nil)
	require.NoError(t, err)

	for _, next := range []string{"A", "B", "C"} {
		plan, err := interp.CreatePlan(tree, tree.RootId)
		require.NoError(t, err)
		require.False(t, plan.IsComplete())
		require.Equal(t, []string{next}, ids(plan.ReadyActivities()))
		byActivity(t, tree, next).Status = model.COMPLETED
	}
	plan, err := interp.CreatePlan(tree, tree.RootId)
	require.NoError(t, err)
	require.Empty(t, plan.ReadyActivities())
	require.True(t, plan.IsComplete())
	require.False(t, plan.IsFailed())
}

func TestDataDependencyGating(t *testing.T) {
	tests := map[string]struct {
		input     model.Input
		readyAtGo []string
	}{
		"required input waits for producer": {
			input:     model.Input{Name: "foo", Required: true},
			readyAtGo: []string{"X"},
		},
		"optional input does not wait": {
			input:     model.Input{Name: "foo"},
			readyAtGo: []string{"Y", "X"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			// Y is declared before X in a sibling sub-process so only the data edge links them.
			interp := newTestInterpreter(t, &model.Process{
				Id: "p",
				SubProcesses: []*model.Process{
					{Id: "consumer", Activities: []*model.Activity{act("Y", []model.Input{tc.input})}},
					{Id: "producer", Activities: []*model.Activity{act("X", nil, "foo")}},
				},
			})
			tree, err := interp.CreateInstance("p", "", nil)
			require.NoError(t, err)
			plan, err := interp.CreatePlan(tree, tree.RootId)
			require.NoError(t, err)
			require.Len(t, plan.Dependencies, 1)
			dep := plan.Dependencies[0]
			require.Equal(t, DATA_DEPENDENCY, dep.Type)
			require.Equal(t, "foo", dep.Name)
			require.Equal(t, !tc.input.Required, dep.Optional)
			require.Equal(t, tc.readyAtGo, ids(plan.ReadyActivities()))

			byActivity(t, tree, "X").Status = model.COMPLETED
			require.Contains(t, ids(plan.ReadyActivities()), "Y")
		})
	}
}

func TestNoSelfDependency(t *testing.T) {
	interp := newTestInterpreter(t, &model.Process{
		Id:         "p",
		Activities: []*model.Activity{act("loop", required("n"), "n")},
	})
	tree, err := interp.CreateInstance("p", "", nil)
	require.NoError(t, err)
	plan, err := interp.CreatePlan(tree, tree.RootId)
	require.NoError(t, err)
	require.Empty(t, plan.Dependencies)
	require.Equal(t, []string{"loop"}, ids(plan.ReadyActivities()))
}

func TestFailureRule(t *testing.T) {
	tests := map[string]struct {
		process *model.Process
		fail    string
		failed  bool
	}{
		"terminal activity is fatal": {
			process: &model.Process{Id: "p", Activities: []*model.Activity{act("A", nil)}},
			fail:    "A",
			failed:  true,
		},
		"activity with required follower is fatal": {
			process: &model.Process{Id: "p", Activities: []*model.Activity{act("A", nil), act("B", nil)}},
			fail:    "A",
			failed:  true,
		},
		"activity with only optional consumers is tolerated": {
			process: &model.Process{
				Id: "p",
				SubProcesses: []*model.Process{
					{Id: "s1", Activities: []*model.Activity{act("A", nil, "hint")}},
					{Id: "s2", Activities: []*model.Activity{act("B", []model.Input{{Name: "hint"}})}},
				},
			},
			fail:   "A",
			failed: false,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			interp := newTestInterpreter(t, tc.process)
			tree, err := interp.CreateInstance("p", "", nil)
			require.NoError(t, err)
			byActivity(t, tree, tc.fail).Status = model.FAILED
			plan, err := interp.CreatePlan(tree, tree.RootId)
			require.NoError(t, err)
			require.Equal(t, tc.failed, plan.IsFailed())
			require.False(t, plan.IsComplete())
			if !tc.failed {
				require.Equal(t, []string{"B"}, ids(plan.ReadyActivities()))
				byActivity(t, tree, "B").Status = model.COMPLETED
				require.True(t, plan.IsComplete())
			}
		})
	}
}

func TestConditionGating(t *testing.T) {
	gated := act("B", nil)
	gated.Condition = `context.approved == true && source.score > 0.5`
	broken := act("C", nil)
	broken.Condition = `context.region > 3`
	interp := newTestInterpreter(t, &model.Process{
		Id:         "p",
		Activities: []*model.Activity{act("A", nil), gated, broken},
	})
	tree, err := interp.CreateInstance("p", "", map[string]any{"approved": false, "region": "emea"})
	require.NoError(t, err)
	a := byActivity(t, tree, "A")
	a.Status = model.COMPLETED
	a.Context["score"] = 0.9

	plan, err := interp.CreatePlan(tree, tree.RootId)
	require.NoError(t, err)
	require.Empty(t, plan.ReadyActivities())

	tree.Root().Context["approved"] = true
	require.Equal(t, []string{"B"}, ids(plan.ReadyActivities()))

	byActivity(t, tree, "B").Status = model.COMPLETED
	require.Empty(t, plan.ReadyActivities(), "evaluation errors count as unsatisfied")
}

func TestPlanForSubProcess(t *testing.T) {
	interp := newTestInterpreter(t, &model.Process{
		Id:         "p",
		Activities: []*model.Activity{act("A", nil)},
		SubProcesses: []*model.Process{
			{Id: "s", Activities: []*model.Activity{act("B", nil), act("C", nil)}},
		},
	})
	tree, err := interp.CreateInstance("p", "", nil)
	require.NoError(t, err)
	sub := tree.Root().SubProcessInstances[0]
	plan, err := interp.CreatePlan(tree, sub)
	require.NoError(t, err)
	require.Equal(t, []string{"B", "C"}, ids(plan.Activities))
	require.Len(t, plan.Outgoing(plan.Activities[0].Id), 1)
	require.Len(t, plan.Incoming(plan.Activities[1].Id), 1)

	_, err = interp.CreatePlan(tree, "unknown")
	require.True(t, errors.Is(err, ErrInstanceNotFound))
}

func TestResolveInputs(t *testing.T) {
	interp := newTestInterpreter(t, &model.Process{
		Id: "p",
		Activities: []*model.Activity{act("A", []model.Input{
			{Name: "budget", Required: true},
			{Name: "currency", Default: "EUR"},
			{Name: "label", Default: "campaign {$.campaign}"},
			{Name: "audience", Required: true},
			{Name: "notes"},
		})},
	})
	inputs, err := interp.ResolveInputs("A", "fw", map[string]any{"budget": 100, "campaign": "spring", "other": 1})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"budget":   100,
		"currency": "EUR",
		"label":    "campaign spring",
	}, inputs)

	_, err = interp.ResolveInputs("missing", "fw", nil)
	require.True(t, errors.Is(err, ErrActivityNotFound))
}

func TestMergeOutputs(t *testing.T) {
	interp := newTestInterpreter(t, &model.Process{
		Id:         "p",
		Activities: []*model.Activity{act("A", nil, "x", "y")},
	})
	ctx := map[string]any{"keep": true}
	merged, err := interp.MergeOutputs("A", "", map[string]any{"x": 42, "extra": "dropped"}, ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"keep": true, "x": 42}, merged)
	require.Equal(t, map[string]any{"keep": true}, ctx)

	_, err = interp.MergeOutputs("missing", "", nil, nil)
	require.Error(t, err)
}

func TestScope(t *testing.T) {
	tree := model.NewInstanceTree()
	tree.RootId = "root"
	tree.Processes["root"] = &model.ProcessInstance{Id: "root", Context: map[string]any{"a": 1, "b": 1}}
	tree.Processes["mid"] = &model.ProcessInstance{Id: "mid", ParentId: "root", Context: map[string]any{"b": 2}}
	tree.Processes["leaf"] = &model.ProcessInstance{Id: "leaf", ParentId: "mid", Context: map[string]any{"c": 3}}

	require.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3}, Scope(tree, "leaf"))
	require.Equal(t, map[string]any{"a": 1, "b": 1}, Scope(tree, "root"))
	require.Empty(t, Scope(tree, "unknown"))
}
