package service

import (
	"context"
	"sync"

	"github.com/mohitkumar/procflow/agent"
	"github.com/mohitkumar/procflow/agent/script"
	"github.com/mohitkumar/procflow/analytics"
	"github.com/mohitkumar/procflow/config"
	"github.com/mohitkumar/procflow/container"
	"github.com/mohitkumar/procflow/engine"
	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/metrics"
	"github.com/mohitkumar/procflow/model"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const METRICS_NAMESPACE = "procflow"

// WorkflowService wires storage, definitions, the engine, its listeners and
// the configured agents together.
type WorkflowService struct {
	Config       config.Config
	container    *container.DIContiner
	engine       *engine.WorkflowEngine
	manager      *agent.Manager
	collector    analytics.WorkflowDataCollector
	metrics      *metrics.Collector
	registry     *prometheus.Registry
	shutdown     bool
	shutdownLock sync.Mutex
	wg           sync.WaitGroup
}

func New(conf config.Config) (*WorkflowService, error) {
	s := &WorkflowService{
		Config: conf,
	}
	setup := []func() error{
		s.setupContainer,
		s.setupEngine,
		s.setupAnalytics,
		s.setupMetrics,
		s.setupAgents,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			s.release()
			return nil, err
		}
	}
	return s, nil
}

func (s *WorkflowService) setupContainer() error {
	s.container = container.NewDiContainer()
	return s.container.Init(s.Config)
}

func (s *WorkflowService) setupEngine() error {
	s.engine = engine.NewWorkflowEngine(s.container.GetInterpreter(), s.container.GetStorage(), s.Config.EngineConfig.Options())
	return nil
}

func (s *WorkflowService) setupAnalytics() error {
	collector, err := analytics.NewDataCollector(s.Config.AnalyticsConfig)
	if err != nil {
		return err
	}
	s.collector = collector
	s.engine.AddListener(collector)
	return nil
}

func (s *WorkflowService) setupMetrics() error {
	s.registry = prometheus.NewRegistry()
	s.metrics = metrics.NewCollector(METRICS_NAMESPACE, s.registry)
	s.engine.AddListener(s.metrics)
	return nil
}

func (s *WorkflowService) setupAgents() error {
	s.manager = agent.NewManager(s.engine, s.Config.PollInterval, &s.wg)
	if s.Config.AgentsFile == "" {
		return nil
	}
	agents, err := script.LoadAgents(s.Config.AgentsFile, s.container.GetRegistry())
	if err != nil {
		return err
	}
	for _, a := range agents {
		s.manager.Register(a)
	}
	return nil
}

func (s *WorkflowService) Engine() *engine.WorkflowEngine {
	return s.engine
}

func (s *WorkflowService) Manager() *agent.Manager {
	return s.manager
}

func (s *WorkflowService) MetricsRegistry() *prometheus.Registry {
	return s.registry
}

func (s *WorkflowService) StartFlow(processId string, frameworkId string, input map[string]any) (string, error) {
	logger.Info("starting process", zap.String("process", processId), zap.String("framework", frameworkId))
	return s.engine.StartProcess(processId, frameworkId, input)
}

// RunFlow starts a process and drives the registered agents until none of
// them has work left. The returned instance may still be running when it
// waits on an agent that is not registered.
func (s *WorkflowService) RunFlow(ctx context.Context, processId string, frameworkId string, input map[string]any) (*model.ProcessInstance, error) {
	id, err := s.StartFlow(processId, frameworkId, input)
	if err != nil {
		return nil, err
	}
	n, err := s.manager.RunUntilIdle(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("agents idle", zap.String("processInstance", id), zap.Int("executed", n))
	return s.engine.GetProcessInstance(id)
}

// Inspect returns the persisted tree of an instance.
func (s *WorkflowService) Inspect(ctx context.Context, id string) (*model.InstanceTree, error) {
	return s.container.GetStorage().LoadInstance(ctx, id)
}

// Start recovers persisted instances and runs agents and blocked activity
// retries in the background until Shutdown.
func (s *WorkflowService) Start(ctx context.Context) error {
	n, err := s.engine.Recover(ctx)
	if err != nil {
		return err
	}
	logger.Info("recovered process instances", zap.Int("count", n))
	s.engine.Start(s.Config.PollInterval, &s.wg)
	s.manager.Start()
	return nil
}

func (s *WorkflowService) WriteMetrics() error {
	if s.Config.MetricsFile == "" {
		return nil
	}
	return prometheus.WriteToTextfile(s.Config.MetricsFile, s.registry)
}

func (s *WorkflowService) Shutdown() error {
	logger.Info("shutting down workflow service")
	s.shutdownLock.Lock()
	defer s.shutdownLock.Unlock()
	if s.shutdown {
		return nil
	}
	s.shutdown = true

	s.manager.Stop()
	s.engine.Stop()
	logger.Info("waiting for all workers to stop...")
	s.wg.Wait()

	shutdown := []func() error{
		s.WriteMetrics,
		s.collector.Close,
		s.container.Close,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// release closes whatever a failed New managed to open.
func (s *WorkflowService) release() {
	if s.collector != nil {
		s.collector.Close()
	}
	if s.container != nil {
		s.container.Close()
	}
}
