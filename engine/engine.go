package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mohitkumar/procflow/cache"
	"github.com/mohitkumar/procflow/interpreter"
	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/persistence"
	"github.com/mohitkumar/procflow/util"
	"go.uber.org/zap"
)

var ErrAssignmentNotFound = errors.New("assignment not found")
var ErrInstanceNotFound = errors.New("process instance not found")
var ErrInvalidStatus = errors.New("status can not be forced on a process")

type assignment struct {
	model.AgentAssignment
	seq int
}

// WorkflowEngine drives process instances: it matches ready activities to
// registered agents and advances state as agents report back. All methods
// are safe for concurrent use; events are delivered after the internal lock
// is released.
type WorkflowEngine struct {
	mu            sync.Mutex
	interpreter   *interpreter.Interpreter
	storage       persistence.Storage
	cache         *cache.InstanceCache
	stateHandlers *StateHandlerContainer
	registry      *agentRegistry
	assignments   map[string]*assignment
	assignSeq     int
	// owners maps every known process and activity instance id to its root.
	owners    map[string]string
	blocked   map[string]*blockedActivity
	listeners []EventListener
	pending   []model.WorkflowEvent
	// deferred runs at the end of run, after every write of the call.
	deferred []func()
	opts     Options
	now      func() time.Time
	retry    *util.TickWorker
}

func NewWorkflowEngine(interp *interpreter.Interpreter, storage persistence.Storage, opts Options) *WorkflowEngine {
	return &WorkflowEngine{
		interpreter:   interp,
		storage:       storage,
		cache:         cache.NewInstanceCache(opts.CacheExpiration),
		stateHandlers: NewStateHandlerContainer(storage),
		registry:      newAgentRegistry(),
		assignments:   make(map[string]*assignment),
		owners:        make(map[string]string),
		blocked:       make(map[string]*blockedActivity),
		opts:          opts,
		now:           time.Now,
	}
}

func (e *WorkflowEngine) AddListener(l EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// run executes fn under the engine lock and then delivers the events it
// produced.
func (e *WorkflowEngine) run(fn func() error) error {
	e.mu.Lock()
	err := fn()
	for _, d := range e.deferred {
		d()
	}
	e.deferred = nil
	events := e.pending
	e.pending = nil
	listeners := append([]EventListener(nil), e.listeners...)
	e.mu.Unlock()
	dispatch(listeners, events)
	return err
}

func (e *WorkflowEngine) emit(event model.WorkflowEvent) {
	e.pending = append(e.pending, event)
}

// RegisterAgent adds an agent with its capabilities. Blocked activities are
// retried immediately for every live process.
func (e *WorkflowEngine) RegisterAgent(agentId string, capabilities ...model.Capability) {
	e.run(func() error {
		if e.registry.has(agentId) {
			logger.Info("agent capabilities replaced", zap.String("agent", agentId), zap.Any("capabilities", capabilities))
		} else {
			logger.Info("agent registered", zap.String("agent", agentId), zap.Any("capabilities", capabilities))
		}
		e.registry.register(agentId, capabilities)
		e.resetBackoff()
		for _, rootId := range e.liveRootIds() {
			if tree, ok := e.cache.Get(rootId); ok {
				e.schedule(tree)
			}
		}
		return nil
	})
}

// UnregisterAgent removes the agent from matching. Assignments it already
// holds are left untouched.
func (e *WorkflowEngine) UnregisterAgent(agentId string) bool {
	var removed bool
	e.run(func() error {
		removed = e.registry.unregister(agentId)
		return nil
	})
	return removed
}

func (e *WorkflowEngine) Agents() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.agents()
}

// StartProcess creates and starts an instance of processId. Unknown
// processes return interpreter.ErrProcessNotFound without side effects.
func (e *WorkflowEngine) StartProcess(processId string, frameworkId string, initialContext map[string]any) (string, error) {
	var rootId string
	err := e.run(func() error {
		tree, err := e.interpreter.CreateInstance(processId, frameworkId, initialContext)
		if err != nil {
			logger.Error("process not found", zap.String("process", processId), zap.String("framework", frameworkId), zap.Error(err))
			return err
		}
		rootId = tree.RootId
		e.track(tree)
		e.persist(tree)
		root := tree.Root()
		e.emit(processEvent(model.PROCESS_STARTED, root, nil))
		root.SetStatus(model.IN_PROGRESS)
		e.persist(tree)
		logger.Info("process started", zap.String("process", processId), zap.String("processInstance", rootId))
		e.settle(tree)
		e.schedule(tree)
		e.persist(tree)
		return nil
	})
	return rootId, err
}

// track indexes the tree ids and caches it.
func (e *WorkflowEngine) track(tree *model.InstanceTree) {
	for _, id := range tree.InstanceIds() {
		e.owners[id] = tree.RootId
	}
	e.cache.Put(tree)
}

func (e *WorkflowEngine) persist(tree *model.InstanceTree) {
	e.cache.Put(tree)
	if err := e.storage.SaveInstance(context.Background(), tree); err != nil {
		logger.Error("error in persisting process state", zap.String("processInstance", tree.RootId), zap.Error(err))
		root := tree.Root()
		e.emit(processEvent(model.ERROR, root, map[string]any{
			"operation": "persist",
			"error":     err.Error(),
		}))
	}
}

// lookup returns the live tree owning id, loading it from storage when it is
// not cached. Ids never seen by this engine are tried as root ids.
func (e *WorkflowEngine) lookup(id string) (*model.InstanceTree, error) {
	rootId, ok := e.owners[id]
	if !ok {
		rootId = id
	}
	if tree, ok := e.cache.Get(rootId); ok {
		return tree, nil
	}
	tree, err := e.storage.LoadInstance(context.Background(), rootId)
	if err != nil {
		if errors.Is(err, persistence.ErrInstanceNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
		}
		return nil, err
	}
	if _, ok := tree.Processes[id]; !ok {
		if _, ok := tree.Activities[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
		}
	}
	e.restore(tree)
	return tree, nil
}

// restore re-indexes a tree read from storage and rebuilds the assignments
// of activities that were handed to an agent.
func (e *WorkflowEngine) restore(tree *model.InstanceTree) {
	e.track(tree)
	ids := make([]string, 0, len(tree.Activities))
	for id := range tree.Activities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ai := tree.Activities[id]
		if ai.AgentId == "" || (ai.Status != model.WAITING && ai.Status != model.IN_PROGRESS) {
			continue
		}
		if _, ok := e.assignments[ai.Id]; ok {
			continue
		}
		e.assignSeq++
		e.assignments[ai.Id] = &assignment{
			AgentAssignment: model.AgentAssignment{
				AgentId:            ai.AgentId,
				ActivityInstanceId: ai.Id,
				ActivityId:         ai.ActivityId,
				ProcessInstanceId:  ai.ProcessInstanceId,
				RootInstanceId:     tree.RootId,
				Inputs:             model.CopyContext(ai.Context),
				AssignedAt:         ai.UpdatedAt,
			},
			seq: e.assignSeq,
		}
	}
	logger.Info("process state recovered", zap.String("processInstance", tree.RootId))
}

// Recover loads every persisted instance that has not finished so that its
// assignments are served again after a restart.
func (e *WorkflowEngine) Recover(ctx context.Context) (int, error) {
	ids, err := e.storage.ListInstances(ctx)
	if err != nil {
		return 0, err
	}
	recovered := 0
	err = e.run(func() error {
		for _, id := range ids {
			if _, ok := e.cache.Get(id); ok {
				continue
			}
			tree, err := e.storage.LoadInstance(ctx, id)
			if err != nil {
				logger.Error("error in loading process state", zap.String("processInstance", id), zap.Error(err))
				continue
			}
			if root := tree.Root(); root == nil || root.Status.IsTerminal() {
				continue
			}
			e.restore(tree)
			e.schedule(tree)
			recovered++
		}
		return nil
	})
	return recovered, err
}

func (e *WorkflowEngine) liveRootIds() []string {
	var ids []string
	for _, id := range e.cache.RootIds() {
		tree, ok := e.cache.Get(id)
		if !ok {
			continue
		}
		if root := tree.Root(); root != nil && !root.Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	return ids
}

// ActiveProcesses lists the root instance ids this engine holds that have
// not reached a terminal status.
func (e *WorkflowEngine) ActiveProcesses() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveRootIds()
}

// schedule assigns every ready and unassigned activity of a running tree to
// the first matching agent.
func (e *WorkflowEngine) schedule(tree *model.InstanceTree) {
	root := tree.Root()
	if root == nil || root.Status != model.IN_PROGRESS {
		return
	}
	plan, err := e.interpreter.CreatePlan(tree, tree.RootId)
	if err != nil {
		logger.Error("error in creating execution plan", zap.String("processInstance", tree.RootId), zap.Error(err))
		return
	}
	for _, ai := range plan.ReadyActivities() {
		if _, ok := e.assignments[ai.Id]; ok {
			continue
		}
		if halted(tree, ai.ProcessInstanceId) {
			continue
		}
		if !e.attemptDue(ai.Id) {
			continue
		}
		pi := tree.Processes[ai.ProcessInstanceId]
		act, ok := e.interpreter.Store().GetActivity(ai.ActivityId, root.FrameworkId)
		if !ok {
			logger.Error("activity definition missing", zap.String("activity", ai.ActivityId))
			continue
		}
		agentId, ok := e.registry.match(act.Capabilities)
		if !ok {
			e.markBlocked(tree, pi, ai, act)
			continue
		}
		e.unblock(ai.Id)
		e.assign(tree, pi, ai, agentId)
	}
}

// halted reports whether the process or one of its ancestors is paused or
// finished.
func halted(tree *model.InstanceTree, processInstanceId string) bool {
	for _, p := range tree.Ancestors(processInstanceId) {
		if p.Status == model.WAITING || p.Status.IsTerminal() {
			return true
		}
	}
	return false
}

func (e *WorkflowEngine) assign(tree *model.InstanceTree, pi *model.ProcessInstance, ai *model.ActivityInstance, agentId string) {
	root := tree.Root()
	inputs, err := e.interpreter.ResolveInputs(ai.ActivityId, root.FrameworkId, interpreter.Scope(tree, pi.Id))
	if err != nil {
		logger.Error("error in resolving inputs", zap.String("activity", ai.ActivityId), zap.Error(err))
		return
	}
	if err := ai.SetStatus(model.WAITING); err != nil {
		logger.Error("error in assigning activity", zap.String("activityInstance", ai.Id), zap.Error(err))
		return
	}
	for k, v := range inputs {
		ai.Context[k] = v
	}
	ai.AgentId = agentId
	if pi.Status == model.NOT_STARTED {
		pi.SetStatus(model.IN_PROGRESS)
		e.emit(processEvent(model.PROCESS_STARTED, pi, map[string]any{"parentInstanceId": pi.ParentId}))
	}
	e.assignSeq++
	e.assignments[ai.Id] = &assignment{
		AgentAssignment: model.AgentAssignment{
			AgentId:            agentId,
			ActivityInstanceId: ai.Id,
			ActivityId:         ai.ActivityId,
			ProcessInstanceId:  pi.Id,
			RootInstanceId:     tree.RootId,
			Inputs:             model.CopyContext(inputs),
			AssignedAt:         model.Now(),
		},
		seq: e.assignSeq,
	}
	logger.Debug("activity assigned", zap.String("activityInstance", ai.Id), zap.String("agent", agentId))
	e.emit(activityEvent(model.ACTIVITY_ASSIGNED, pi, ai, map[string]any{"inputs": model.CopyContext(inputs)}))
	e.persist(tree)
}

// assigned returns the tree and instances behind an assignment.
func (e *WorkflowEngine) assigned(activityInstanceId string) (*model.InstanceTree, *model.ProcessInstance, *model.ActivityInstance, error) {
	if _, ok := e.assignments[activityInstanceId]; !ok {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrAssignmentNotFound, activityInstanceId)
	}
	tree, err := e.lookup(activityInstanceId)
	if err != nil {
		return nil, nil, nil, err
	}
	ai, ok := tree.Activity(activityInstanceId)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, activityInstanceId)
	}
	pi, ok := tree.Process(ai.ProcessInstanceId)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, ai.ProcessInstanceId)
	}
	return tree, pi, ai, nil
}

// StartActivity marks an assigned activity IN_PROGRESS.
func (e *WorkflowEngine) StartActivity(activityInstanceId string) error {
	return e.run(func() error {
		tree, pi, ai, err := e.assigned(activityInstanceId)
		if err != nil {
			return err
		}
		if ai.Status == model.IN_PROGRESS {
			return nil
		}
		if err := ai.SetStatus(model.IN_PROGRESS); err != nil {
			return err
		}
		e.persist(tree)
		e.emit(activityEvent(model.ACTIVITY_STARTED, pi, ai, nil))
		return nil
	})
}

// CompleteActivity records the outputs of an assigned activity. Declared
// outputs are merged into the owning process context and every ancestor
// context before finished processes are closed and the tree is rescheduled.
func (e *WorkflowEngine) CompleteActivity(activityInstanceId string, outputs map[string]any) error {
	return e.run(func() error {
		tree, pi, ai, err := e.assigned(activityInstanceId)
		if err != nil {
			return err
		}
		if err := e.finish(ai, model.COMPLETED); err != nil {
			return err
		}
		for k, v := range outputs {
			ai.Context[k] = model.CopyValue(v)
		}
		frameworkId := tree.Root().FrameworkId
		for _, p := range tree.Ancestors(pi.Id) {
			merged, err := e.interpreter.MergeOutputs(ai.ActivityId, frameworkId, outputs, p.Context)
			if err != nil {
				return err
			}
			p.Context = merged
			p.UpdatedAt = model.Now()
		}
		e.persist(tree)
		e.emit(activityEvent(model.ACTIVITY_COMPLETED, pi, ai, map[string]any{"outputs": model.CopyContext(outputs)}))
		delete(e.assignments, ai.Id)
		e.settle(tree)
		e.schedule(tree)
		e.persist(tree)
		return nil
	})
}

// FailActivity records an agent failure. When the failure is fatal for the
// plan the owning process and all of its ancestors fail.
func (e *WorkflowEngine) FailActivity(activityInstanceId string, errMsg string) error {
	return e.run(func() error {
		tree, pi, ai, err := e.assigned(activityInstanceId)
		if err != nil {
			return err
		}
		if err := e.finish(ai, model.FAILED); err != nil {
			return err
		}
		ai.Context["error"] = errMsg
		e.persist(tree)
		e.emit(activityEvent(model.ACTIVITY_FAILED, pi, ai, map[string]any{"error": errMsg}))
		delete(e.assignments, ai.Id)

		plan, err := e.interpreter.CreatePlan(tree, tree.RootId)
		if err != nil {
			return err
		}
		if plan.IsFailed() {
			e.failProcess(tree, pi, errMsg)
			e.persist(tree)
			return nil
		}
		logger.Info("activity failure tolerated", zap.String("activityInstance", ai.Id))
		e.settle(tree)
		e.schedule(tree)
		e.persist(tree)
		return nil
	})
}

// finish moves an assigned activity into a terminal status. Activities the
// agent never started pass through IN_PROGRESS.
func (e *WorkflowEngine) finish(ai *model.ActivityInstance, status model.Status) error {
	if ai.Status == model.WAITING {
		if err := ai.SetStatus(model.IN_PROGRESS); err != nil {
			return err
		}
	}
	return ai.SetStatus(status)
}

func (e *WorkflowEngine) failProcess(tree *model.InstanceTree, pi *model.ProcessInstance, errMsg string) {
	for _, p := range tree.Ancestors(pi.Id) {
		if p.Status.IsTerminal() {
			continue
		}
		p.SetStatus(model.FAILED)
		p.Context["error"] = errMsg
		logger.Info("process failed", zap.String("processInstance", p.Id), zap.String("error", errMsg))
		e.emit(processEvent(model.PROCESS_FAILED, p, map[string]any{"error": errMsg}))
	}
	e.cancelUnfinished(tree, tree.RootId)
	e.terminal(tree, e.opts.OnFailure)
}

// settle closes every process whose activities and sub-processes are done,
// children before parents. A failed activity counts as done when the root
// plan tolerates it.
func (e *WorkflowEngine) settle(tree *model.InstanceTree) {
	root := tree.Root()
	if root == nil || root.Status.IsTerminal() {
		return
	}
	plan, err := e.interpreter.CreatePlan(tree, tree.RootId)
	if err != nil {
		logger.Error("error in creating execution plan", zap.String("processInstance", tree.RootId), zap.Error(err))
		return
	}
	var order []*model.ProcessInstance
	tree.WalkProcesses(tree.RootId, func(p *model.ProcessInstance) {
		order = append(order, p)
	})
	for idx := len(order) - 1; idx >= 0; idx-- {
		p := order[idx]
		if p.Status.IsTerminal() || p.Status == model.WAITING {
			continue
		}
		if !done(tree, plan, p) {
			continue
		}
		p.SetStatus(model.COMPLETED)
		logger.Info("process completed", zap.String("processInstance", p.Id))
		e.emit(processEvent(model.PROCESS_COMPLETED, p, nil))
		if p.Id == tree.RootId {
			e.terminal(tree, e.opts.OnComplete)
		}
	}
}

func done(tree *model.InstanceTree, plan *interpreter.ExecutionPlan, p *model.ProcessInstance) bool {
	for _, aid := range p.ActivityOrder {
		ai, ok := tree.Activities[aid]
		if !ok {
			continue
		}
		switch ai.Status {
		case model.COMPLETED, model.CANCELED:
		case model.FAILED:
			if plan.IsFatal(ai.Id) {
				return false
			}
		default:
			return false
		}
	}
	for _, sub := range p.SubProcessInstances {
		if sp, ok := tree.Processes[sub]; ok && !sp.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// terminal releases the engine state of a finished tree and applies the
// configured state handler.
func (e *WorkflowEngine) terminal(tree *model.InstanceTree, handler Statehandler) {
	for id, b := range e.blocked {
		if b.rootId == tree.RootId {
			delete(e.blocked, id)
		}
	}
	if handler == DELETE {
		for id, a := range e.assignments {
			if a.RootInstanceId == tree.RootId {
				delete(e.assignments, id)
			}
		}
	}
	e.cache.Put(tree)
	if handler == NOOP || handler == "" {
		return
	}
	e.deferred = append(e.deferred, func() {
		if err := e.stateHandlers.GetHandler(handler)(tree.RootId); err != nil {
			logger.Error("error in terminal state handler", zap.String("processInstance", tree.RootId), zap.Error(err))
		}
	})
}

// GetAgentAssignments returns the assignments held by agentId, oldest first.
func (e *WorkflowEngine) GetAgentAssignments(agentId string) []model.AgentAssignment {
	e.mu.Lock()
	defer e.mu.Unlock()
	var held []*assignment
	for _, a := range e.assignments {
		if a.AgentId == agentId {
			held = append(held, a)
		}
	}
	sort.Slice(held, func(i, j int) bool { return held[i].seq < held[j].seq })
	out := make([]model.AgentAssignment, 0, len(held))
	for _, a := range held {
		c := a.AgentAssignment
		c.Inputs = model.CopyContext(a.Inputs)
		out = append(out, c)
	}
	return out
}

// GetProcessInstance returns a copy of a root or sub-process instance,
// reading persisted state when the instance is not in memory.
func (e *WorkflowEngine) GetProcessInstance(id string) (*model.ProcessInstance, error) {
	var pi *model.ProcessInstance
	err := e.run(func() error {
		tree, err := e.lookup(id)
		if err != nil {
			return err
		}
		p, ok := tree.Process(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
		}
		pi = p.Clone()
		return nil
	})
	return pi, err
}

// GetInstanceTree returns a copy of the whole tree that id belongs to.
func (e *WorkflowEngine) GetInstanceTree(id string) (*model.InstanceTree, error) {
	var tree *model.InstanceTree
	err := e.run(func() error {
		t, err := e.lookup(id)
		if err != nil {
			return err
		}
		tree = t.Clone()
		return nil
	})
	return tree, err
}

// GetExecutionPlan computes the plan of a process instance over a snapshot
// of its tree.
func (e *WorkflowEngine) GetExecutionPlan(id string) (*interpreter.ExecutionPlan, error) {
	tree, err := e.GetInstanceTree(id)
	if err != nil {
		return nil, err
	}
	return e.interpreter.CreatePlan(tree, id)
}

// ScheduleProcess runs a scheduling pass for the tree id belongs to.
func (e *WorkflowEngine) ScheduleProcess(id string) error {
	return e.run(func() error {
		tree, err := e.lookup(id)
		if err != nil {
			return err
		}
		e.schedule(tree)
		return nil
	})
}

// RetryBlocked reschedules every live tree that has an activity waiting for
// an agent whose backoff delay has passed.
func (e *WorkflowEngine) RetryBlocked() {
	e.run(func() error {
		due := make(map[string]bool)
		for id, b := range e.blocked {
			if e.attemptDue(id) {
				due[b.rootId] = true
			}
		}
		for rootId := range due {
			if tree, ok := e.cache.Get(rootId); ok {
				e.schedule(tree)
			}
		}
		return nil
	})
}

// BlockedActivities lists activity instance ids waiting for a capable agent.
func (e *WorkflowEngine) BlockedActivities() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.blocked))
	for id := range e.blocked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CancelProcess cancels a process instance and its unfinished descendants,
// emitting PROCESS_CANCELED for each. Activities already IN_PROGRESS run to
// their end; the rest are CANCELED.
func (e *WorkflowEngine) CancelProcess(id string) error {
	return e.run(func() error {
		tree, err := e.lookup(id)
		if err != nil {
			return err
		}
		pi, ok := tree.Process(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
		}
		e.cancel(tree, pi)
		if pi.Id != tree.RootId {
			e.settle(tree)
			e.schedule(tree)
		}
		e.persist(tree)
		return nil
	})
}

func (e *WorkflowEngine) cancel(tree *model.InstanceTree, pi *model.ProcessInstance) {
	e.cancelUnfinished(tree, pi.Id)
	logger.Info("process canceled", zap.String("processInstance", pi.Id))
	if pi.Id == tree.RootId {
		e.terminal(tree, NOOP)
	}
}

// cancelUnfinished cancels the activities no agent has started and every
// unfinished process below processInstanceId, itself included.
func (e *WorkflowEngine) cancelUnfinished(tree *model.InstanceTree, processInstanceId string) {
	tree.WalkProcesses(processInstanceId, func(p *model.ProcessInstance) {
		for _, aid := range p.ActivityOrder {
			ai := tree.Activities[aid]
			if ai.Status == model.NOT_STARTED || ai.Status == model.WAITING {
				ai.SetStatus(model.CANCELED)
				delete(e.assignments, ai.Id)
				e.unblock(ai.Id)
			}
		}
		if !p.Status.IsTerminal() {
			p.SetStatus(model.CANCELED)
			e.emit(processEvent(model.PROCESS_CANCELED, p, nil))
		}
	})
}

// UpdateProcessStatus forces a process status. WAITING pauses scheduling of
// the process and its sub-processes and keeps its parents open, IN_PROGRESS
// resumes it and CANCELED cancels the process.
func (e *WorkflowEngine) UpdateProcessStatus(id string, status model.Status) error {
	if status == model.CANCELED {
		return e.CancelProcess(id)
	}
	if status != model.WAITING && status != model.IN_PROGRESS {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	return e.run(func() error {
		tree, err := e.lookup(id)
		if err != nil {
			return err
		}
		pi, ok := tree.Process(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
		}
		if pi.Status.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", ErrInvalidStatus, id, pi.Status)
		}
		pi.SetStatus(status)
		if status == model.IN_PROGRESS {
			e.settle(tree)
			e.schedule(tree)
		}
		e.persist(tree)
		return nil
	})
}

// Start runs a background worker retrying blocked activities every interval.
func (e *WorkflowEngine) Start(interval time.Duration, wg *sync.WaitGroup) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retry != nil {
		return
	}
	e.retry = util.NewTickWorker("blocked-activity-retry", interval, e.RetryBlocked, wg)
	e.retry.Start()
}

func (e *WorkflowEngine) Stop() {
	e.mu.Lock()
	retry := e.retry
	e.retry = nil
	e.mu.Unlock()
	if retry != nil {
		retry.Stop()
	}
}
