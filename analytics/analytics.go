package analytics

import (
	"fmt"

	"github.com/mohitkumar/procflow/engine"
	"github.com/mohitkumar/procflow/model"
)

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"
const NOOP_DATA_COLLECTOR DataCollectorType = "NOOP_DATA_COLLECTOR"

// WorkflowDataCollector records the workflow event stream for later
// analysis.
type WorkflowDataCollector interface {
	engine.EventListener
	Close() error
}

func NewDataCollector(config DataCollectorConfig) (WorkflowDataCollector, error) {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		return NewLogFileDataCollector(config.FileName)
	case NOOP_DATA_COLLECTOR, "":
		return noopCollector{}, nil
	}
	return nil, fmt.Errorf("unknown data collector %s", config.CollectorType)
}

type noopCollector struct{}

func (noopCollector) OnEvent(model.WorkflowEvent) {}

func (noopCollector) Close() error {
	return nil
}
