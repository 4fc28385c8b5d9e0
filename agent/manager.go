package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohitkumar/procflow/engine"
	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const VERIFICATION_FAILED = "result verification failed"

// Engine is the part of the workflow engine agents talk to.
type Engine interface {
	RegisterAgent(agentId string, capabilities ...model.Capability)
	UnregisterAgent(agentId string) bool
	GetAgentAssignments(agentId string) []model.AgentAssignment
	StartActivity(activityInstanceId string) error
	CompleteActivity(activityInstanceId string, outputs map[string]any) error
	FailActivity(activityInstanceId string, errMsg string) error
}

var _ Engine = new(engine.WorkflowEngine)

// Manager registers agents on an engine and drives the pull loop for them:
// fetch assignments, start, execute, verify, then complete or fail.
type Manager struct {
	engine       Engine
	pollInterval time.Duration
	wg           *sync.WaitGroup
	mu           sync.Mutex
	agents       map[string]Agent
	order        []string
	workers      map[string]*util.TickWorker
	inflight     map[string]struct{}
	running      bool
}

func NewManager(eng Engine, pollInterval time.Duration, wg *sync.WaitGroup) *Manager {
	return &Manager{
		engine:       eng,
		pollInterval: pollInterval,
		wg:           wg,
		agents:       make(map[string]Agent),
		workers:      make(map[string]*util.TickWorker),
		inflight:     make(map[string]struct{}),
	}
}

// Register adds the agent to the engine with its capabilities. A running
// manager starts polling for it right away, replacing the worker of an
// agent registered earlier under the same id.
func (m *Manager) Register(a Agent) {
	m.mu.Lock()
	if _, ok := m.agents[a.GetId()]; !ok {
		m.order = append(m.order, a.GetId())
	}
	m.agents[a.GetId()] = a
	running := m.running
	m.mu.Unlock()

	m.engine.RegisterAgent(a.GetId(), a.GetCapabilities()...)
	logger.Info("agent added to manager", zap.String("agent", a.GetId()), zap.Int("activities", len(a.GetSupportedActivities())))
	if running {
		m.startWorker(a)
	}
}

func (m *Manager) Unregister(agentId string) bool {
	m.mu.Lock()
	_, ok := m.agents[agentId]
	if ok {
		delete(m.agents, agentId)
		for i, id := range m.order {
			if id == agentId {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	worker := m.workers[agentId]
	delete(m.workers, agentId)
	m.mu.Unlock()

	if worker != nil {
		worker.Stop()
	}
	if !ok {
		return false
	}
	return m.engine.UnregisterAgent(agentId)
}

func (m *Manager) Agent(agentId string) (Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[agentId]
	return a, ok
}

func (m *Manager) Agents() []Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Agent, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.agents[id])
	}
	return out
}

// RunOnce drains the current assignments of every agent, each agent on its
// own goroutine, and returns how many activities were executed.
func (m *Manager) RunOnce(ctx context.Context) (int, error) {
	var processed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range m.Agents() {
		g.Go(func() error {
			n, err := m.drain(gctx, a)
			processed.Add(int64(n))
			return err
		})
	}
	err := g.Wait()
	return int(processed.Load()), err
}

// RunUntilIdle repeats RunOnce until a pass executes nothing.
func (m *Manager) RunUntilIdle(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := m.RunOnce(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}

func (m *Manager) drain(ctx context.Context, a Agent) (int, error) {
	n := 0
	for _, asg := range m.engine.GetAgentAssignments(a.GetId()) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if !m.acquire(asg.ActivityInstanceId) {
			continue
		}
		executed, err := m.execute(ctx, a, asg)
		m.release(asg.ActivityInstanceId)
		if err != nil {
			return n, err
		}
		if executed {
			n++
		}
	}
	return n, nil
}

func (m *Manager) acquire(activityInstanceId string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[activityInstanceId]; ok {
		return false
	}
	m.inflight[activityInstanceId] = struct{}{}
	return true
}

func (m *Manager) release(activityInstanceId string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, activityInstanceId)
}

func (m *Manager) execute(ctx context.Context, a Agent, asg model.AgentAssignment) (bool, error) {
	if err := m.engine.StartActivity(asg.ActivityInstanceId); err != nil {
		if errors.Is(err, engine.ErrAssignmentNotFound) {
			return false, nil
		}
		return false, err
	}
	logger.Debug("executing activity", zap.String("agent", a.GetId()), zap.String("activity", asg.ActivityId),
		zap.String("activityInstance", asg.ActivityInstanceId))
	outputs, err := invoke(ctx, a, asg)
	if err != nil {
		logger.Warn("activity execution failed", zap.String("agent", a.GetId()), zap.String("activity", asg.ActivityId), zap.Error(err))
		return true, settled(m.engine.FailActivity(asg.ActivityInstanceId, err.Error()))
	}
	if !a.VerifyActivityResult(asg.ActivityId, outputs) {
		logger.Warn("activity result rejected", zap.String("agent", a.GetId()), zap.String("activity", asg.ActivityId))
		return true, settled(m.engine.FailActivity(asg.ActivityInstanceId, VERIFICATION_FAILED))
	}
	return true, settled(m.engine.CompleteActivity(asg.ActivityInstanceId, outputs))
}

// invoke runs the agent, turning a panic into an error.
func invoke(ctx context.Context, a Agent, asg model.AgentAssignment) (outputs map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent %s panicked: %v", a.GetId(), r)
		}
	}()
	return a.ExecuteActivity(ctx, asg.ActivityId, model.CopyContext(asg.Inputs))
}

// settled ignores assignments released by someone else in the meantime.
func settled(err error) error {
	if errors.Is(err, engine.ErrAssignmentNotFound) {
		return nil
	}
	return err
}

// Start polls assignments for every registered agent, one tick worker per
// agent.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	agents := make([]Agent, 0, len(m.order))
	for _, id := range m.order {
		agents = append(agents, m.agents[id])
	}
	m.mu.Unlock()
	for _, a := range agents {
		m.startWorker(a)
	}
}

func (m *Manager) startWorker(a Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.workers[a.GetId()]; ok && old.IsRunning() {
		old.Stop()
	}
	w := util.NewTickWorker("agent-"+a.GetId(), m.pollInterval, func() {
		if _, err := m.drain(context.Background(), a); err != nil {
			logger.Error("error in driving agent", zap.String("agent", a.GetId()), zap.Error(err))
		}
	}, m.wg)
	m.workers[a.GetId()] = w
	w.Start()
}

func (m *Manager) Stop() {
	m.mu.Lock()
	m.running = false
	workers := m.workers
	m.workers = make(map[string]*util.TickWorker)
	m.mu.Unlock()
	for _, w := range workers {
		w.Stop()
	}
}
