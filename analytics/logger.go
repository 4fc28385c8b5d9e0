package analytics

import (
	"os"

	"github.com/mohitkumar/procflow/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ WorkflowDataCollector = new(LogFileDataCollector)

// LogFileDataCollector appends one JSON line per workflow event.
type LogFileDataCollector struct {
	fileName string
	file     *os.File
	logger   *zap.Logger
}

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	encoderConfig.CallerKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	core := zapcore.NewCore(fileEncoder, writer, zapcore.InfoLevel)
	return &LogFileDataCollector{
		fileName: fileName,
		file:     logFile,
		logger:   zap.New(core),
	}, nil
}

func (lc *LogFileDataCollector) OnEvent(event model.WorkflowEvent) {
	fields := []zap.Field{
		zap.String("process", event.ProcessId),
		zap.String("processInstance", event.ProcessInstanceId),
		zap.Time("eventTime", event.Timestamp),
	}
	if event.ActivityInstanceId != "" {
		fields = append(fields,
			zap.String("activity", event.ActivityId),
			zap.String("activityInstance", event.ActivityInstanceId))
	}
	if event.AgentId != "" {
		fields = append(fields, zap.String("agent", event.AgentId))
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}
	switch event.Type {
	case model.PROCESS_FAILED, model.ACTIVITY_FAILED, model.ERROR:
		lc.logger.Warn(string(event.Type), fields...)
	default:
		lc.logger.Info(string(event.Type), fields...)
	}
}

func (lc *LogFileDataCollector) Close() error {
	lc.logger.Sync()
	return lc.file.Close()
}
