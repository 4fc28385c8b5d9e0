package engine

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/model"
	"go.uber.org/zap"
)

// blockedActivity tracks an activity no registered agent can take. The next
// match is attempted only once the backoff delay has passed.
type blockedActivity struct {
	rootId      string
	backOff     *backoff.ExponentialBackOff
	nextAttempt time.Time
	attempts    int
	alerted     bool
}

func (e *WorkflowEngine) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.BackoffInitial
	b.MaxInterval = e.opts.BackoffMax
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

func (e *WorkflowEngine) attemptDue(activityInstanceId string) bool {
	b, ok := e.blocked[activityInstanceId]
	if !ok {
		return true
	}
	return !e.now().Before(b.nextAttempt)
}

func (e *WorkflowEngine) markBlocked(tree *model.InstanceTree, pi *model.ProcessInstance, ai *model.ActivityInstance, act *model.Activity) {
	b, ok := e.blocked[ai.Id]
	if !ok {
		b = &blockedActivity{rootId: tree.RootId, backOff: e.newBackOff()}
		e.blocked[ai.Id] = b
	}
	b.attempts++
	delay := b.backOff.NextBackOff()
	b.nextAttempt = e.now().Add(delay)
	logger.Warn("no agent available for activity",
		zap.String("processInstance", pi.Id),
		zap.String("activity", ai.ActivityId),
		zap.Any("capabilities", act.Capabilities),
		zap.Int("attempts", b.attempts),
		zap.Duration("retryIn", delay))
	if e.opts.BlockedAlertAttempts > 0 && b.attempts >= e.opts.BlockedAlertAttempts && !b.alerted {
		b.alerted = true
		e.emit(activityEvent(model.ERROR, pi, ai, map[string]any{
			"reason":       "no agent with required capabilities",
			"capabilities": capabilityStrings(act.Capabilities),
			"attempts":     b.attempts,
		}))
	}
}

func (e *WorkflowEngine) unblock(activityInstanceId string) {
	delete(e.blocked, activityInstanceId)
}

// resetBackoff makes every blocked activity eligible on the next pass,
// keeping the attempt count so the alert still fires only once.
func (e *WorkflowEngine) resetBackoff() {
	for _, b := range e.blocked {
		b.backOff.Reset()
		b.nextAttempt = time.Time{}
	}
}

func capabilityStrings(caps []model.Capability) []string {
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		out = append(out, string(c))
	}
	return out
}
