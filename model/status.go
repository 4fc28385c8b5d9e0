package model

import (
	"fmt"
	"strings"
)

type Status string

const NOT_STARTED Status = "NOT_STARTED"
const IN_PROGRESS Status = "IN_PROGRESS"
const COMPLETED Status = "COMPLETED"
const FAILED Status = "FAILED"
const WAITING Status = "WAITING"
const CANCELED Status = "CANCELED"

var allStatuses = []Status{NOT_STARTED, IN_PROGRESS, COMPLETED, FAILED, WAITING, CANCELED}

func ToStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if strings.EqualFold(string(st), s) {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status %s", s)
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == COMPLETED || s == FAILED || s == CANCELED
}

// activityTransitions lists the legal next states for an activity instance.
var activityTransitions = map[Status][]Status{
	NOT_STARTED: {WAITING, CANCELED},
	WAITING:     {IN_PROGRESS, CANCELED},
	IN_PROGRESS: {COMPLETED, FAILED},
}

func canTransition(from Status, to Status) bool {
	for _, next := range activityTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
