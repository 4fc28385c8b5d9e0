package interpreter

import (
	"fmt"
	"testing"

	"github.com/mohitkumar/procflow/definition"
	"github.com/mohitkumar/procflow/model"
	"pgregory.net/rapid"
)

type treeGen struct {
	processes  int
	activities int
}

func (g *treeGen) process(t *rapid.T, depth int) *model.Process {
	g.processes++
	p := &model.Process{Id: fmt.Sprintf("p%d", g.processes)}
	for i := rapid.IntRange(0, 4).Draw(t, "activities"); i > 0; i-- {
		g.activities++
		p.Activities = append(p.Activities, &model.Activity{Id: fmt.Sprintf("a%d", g.activities)})
	}
	if depth < 3 {
		for i := rapid.IntRange(0, 3).Draw(t, "subprocesses"); i > 0; i-- {
			p.SubProcesses = append(p.SubProcesses, g.process(t, depth+1))
		}
	}
	return p
}

func TestCreateInstanceMirrorsDefinition(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := &treeGen{}
		root := g.process(t, 0)
		reg, err := definition.NewRegistry(&model.Framework{Id: "fw", Processes: []*model.Process{root}})
		if err != nil {
			t.Fatalf("registry: %v", err)
		}
		tree, err := NewInterpreter(reg).CreateInstance(root.Id, "", nil)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if len(tree.Activities) != g.activities {
			t.Fatalf("activities: got %d want %d", len(tree.Activities), g.activities)
		}
		// processes counts the root too
		if len(tree.Processes) != g.processes {
			t.Fatalf("processes: got %d want %d", len(tree.Processes), g.processes)
		}
		var check func(def *model.Process, id string)
		check = func(def *model.Process, id string) {
			pi := tree.Processes[id]
			if pi.ProcessId != def.Id || pi.Status != model.NOT_STARTED {
				t.Fatalf("process %s mirrors %s with status %s", id, def.Id, pi.Status)
			}
			if len(pi.ActivityOrder) != len(def.Activities) || len(pi.SubProcessInstances) != len(def.SubProcesses) {
				t.Fatalf("process %s shape mismatch", def.Id)
			}
			for i, a := range def.Activities {
				ai := tree.Activities[pi.ActivityOrder[i]]
				if ai.ActivityId != a.Id || ai.Status != model.NOT_STARTED || ai.ProcessInstanceId != id {
					t.Fatalf("activity %s not mirrored", a.Id)
				}
			}
			for i, sub := range def.SubProcesses {
				child := pi.SubProcessInstances[i]
				if tree.Processes[child].ParentId != id {
					t.Fatalf("sub-process %s has wrong parent", sub.Id)
				}
				check(sub, child)
			}
		}
		check(root, tree.RootId)
	})
}

func TestSequentialPlanProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		p := &model.Process{Id: "p"}
		for i := 0; i < n; i++ {
			p.Activities = append(p.Activities, &model.Activity{Id: fmt.Sprintf("a%d", i)})
		}
		reg, _ := definition.NewRegistry(&model.Framework{Id: "fw", Processes: []*model.Process{p}})
		interp := NewInterpreter(reg)
		tree, _ := interp.CreateInstance("p", "", nil)
		plan, err := interp.CreatePlan(tree, tree.RootId)
		if err != nil {
			t.Fatalf("plan: %v", err)
		}
		if len(plan.Dependencies) != n-1 {
			t.Fatalf("expected %d follows edges, got %d", n-1, len(plan.Dependencies))
		}
		for i := 0; i < n; i++ {
			ready := plan.ReadyActivities()
			if len(ready) != 1 || ready[0].ActivityId != fmt.Sprintf("a%d", i) {
				t.Fatalf("step %d: unexpected ready set %v", i, ready)
			}
			if plan.IsComplete() {
				t.Fatalf("complete before step %d", i)
			}
			ready[0].Status = model.COMPLETED
		}
		if !plan.IsComplete() || plan.IsFailed() {
			t.Fatalf("plan should be complete")
		}
	})
}
