package liveness

import "sync/atomic"

// RecoveryAction resets the user-facing view after the core comes back.
type RecoveryAction interface {
	Recover(reason string)
}

// RecoveryFunc adapts a function to RecoveryAction.
type RecoveryFunc func(reason string)

// Recover calls f(reason).
func (f RecoveryFunc) Recover(reason string) {
	f(reason)
}

// RecoveryTrigger runs its action at most once per unavailable to available
// edge. Arm marks the falling edge; Fire runs the action only when armed.
type RecoveryTrigger struct {
	action RecoveryAction
	armed  bool
	fires  atomic.Int64
}

// NewRecoveryTrigger creates a disarmed trigger. A nil action only counts.
func NewRecoveryTrigger(action RecoveryAction) *RecoveryTrigger {
	return &RecoveryTrigger{action: action}
}

// Arm records that the core became unavailable.
func (r *RecoveryTrigger) Arm() {
	r.armed = true
}

// Disarm forgets a pending edge without running the action.
func (r *RecoveryTrigger) Disarm() {
	r.armed = false
}

// Armed reports whether the next Fire will run the action.
func (r *RecoveryTrigger) Armed() bool {
	return r.armed
}

// Fire runs the action if the trigger is armed and reports whether it ran.
func (r *RecoveryTrigger) Fire(reason string) bool {
	if !r.armed {
		return false
	}
	r.armed = false
	r.fires.Add(1)

	if r.action != nil {
		r.action.Recover(reason)
	}
	return true
}

// Fires returns how many times the action has run. Safe to call from any
// goroutine.
func (r *RecoveryTrigger) Fires() int64 {
	return r.fires.Load()
}
