package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/persistence"
	"go.uber.org/zap"
)

// Statehandler decides what happens to persisted state once a process
// reaches a terminal status.
type Statehandler string

const DELETE Statehandler = "DELETE"
const NOOP Statehandler = "NOOP"

func ValidateStateHandler(st string) error {
	if len(st) == 0 || strings.EqualFold(st, string(DELETE)) || strings.EqualFold(st, string(NOOP)) {
		return nil
	}
	return fmt.Errorf("invalid state handler %s", st)
}

func ToStatehandler(st string) Statehandler {
	if strings.EqualFold(st, string(DELETE)) {
		return DELETE
	}
	return NOOP
}

type StateHandlerContainer struct {
	handlers map[Statehandler]func(rootId string) error
	storage  persistence.Storage
}

func NewStateHandlerContainer(storage persistence.Storage) *StateHandlerContainer {
	hd := &StateHandlerContainer{
		storage:  storage,
		handlers: make(map[Statehandler]func(rootId string) error, 2),
	}
	hd.handlers[DELETE] = hd.delete
	hd.handlers[NOOP] = hd.noop
	return hd
}

func (s *StateHandlerContainer) GetHandler(st Statehandler) func(rootId string) error {
	handler, ok := s.handlers[st]
	if ok {
		return handler
	}
	return s.noop
}

func (s *StateHandlerContainer) delete(rootId string) error {
	logger.Debug("deleting terminal process state", zap.String("processInstance", rootId))
	return s.storage.DeleteInstance(context.Background(), rootId)
}

func (s *StateHandlerContainer) noop(rootId string) error {
	return nil
}
