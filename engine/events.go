package engine

import (
	"fmt"

	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/model"
	"go.uber.org/zap"
)

type EventListener interface {
	OnEvent(event model.WorkflowEvent)
}

type ListenerFunc func(event model.WorkflowEvent)

func (f ListenerFunc) OnEvent(event model.WorkflowEvent) {
	f(event)
}

func dispatch(listeners []EventListener, events []model.WorkflowEvent) {
	for _, event := range events {
		for _, l := range listeners {
			notify(l, event)
		}
	}
}

func notify(l EventListener, event model.WorkflowEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event listener failed", zap.String("event", string(event.Type)),
				zap.String("processInstance", event.ProcessInstanceId), zap.Error(fmt.Errorf("%v", r)))
		}
	}()
	l.OnEvent(event)
}

func processEvent(t model.EventType, pi *model.ProcessInstance, details map[string]any) model.WorkflowEvent {
	return model.WorkflowEvent{
		Type:              t,
		ProcessId:         pi.ProcessId,
		ProcessInstanceId: pi.Id,
		Details:           details,
		Timestamp:         model.Now(),
	}
}

func activityEvent(t model.EventType, pi *model.ProcessInstance, ai *model.ActivityInstance, details map[string]any) model.WorkflowEvent {
	return model.WorkflowEvent{
		Type:               t,
		ProcessId:          pi.ProcessId,
		ProcessInstanceId:  pi.Id,
		ActivityId:         ai.ActivityId,
		ActivityInstanceId: ai.Id,
		AgentId:            ai.AgentId,
		Details:            details,
		Timestamp:          model.Now(),
	}
}
