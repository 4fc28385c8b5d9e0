package model

import "time"

type EventType string

const PROCESS_STARTED EventType = "PROCESS_STARTED"
const PROCESS_COMPLETED EventType = "PROCESS_COMPLETED"
const PROCESS_FAILED EventType = "PROCESS_FAILED"
const PROCESS_CANCELED EventType = "PROCESS_CANCELED"
const ACTIVITY_STARTED EventType = "ACTIVITY_STARTED"
const ACTIVITY_COMPLETED EventType = "ACTIVITY_COMPLETED"
const ACTIVITY_FAILED EventType = "ACTIVITY_FAILED"
const ACTIVITY_ASSIGNED EventType = "ACTIVITY_ASSIGNED"
const ERROR EventType = "ERROR"

type WorkflowEvent struct {
	Type               EventType      `json:"type"`
	ProcessId          string         `json:"processId"`
	ProcessInstanceId  string         `json:"processInstanceId"`
	ActivityId         string         `json:"activityId,omitempty"`
	ActivityInstanceId string         `json:"activityInstanceId,omitempty"`
	AgentId            string         `json:"agentId,omitempty"`
	Details            map[string]any `json:"details,omitempty"`
	Timestamp          time.Time      `json:"timestamp"`
}

// AgentAssignment binds one ready activity instance to one agent. It only
// lives while the activity is WAITING or IN_PROGRESS.
type AgentAssignment struct {
	AgentId            string         `json:"agentId"`
	ActivityInstanceId string         `json:"activityInstanceId"`
	ActivityId         string         `json:"activityId"`
	ProcessInstanceId  string         `json:"processInstanceId"`
	RootInstanceId     string         `json:"rootInstanceId"`
	Inputs             map[string]any `json:"inputs"`
	AssignedAt         time.Time      `json:"assignedAt"`
}
