package xp

import (
	"sync"
	"time"

	"github.com/llxisdsh/slimsync"
)

const (
	// INFINITE makes a sleep wait without a timeout.
	INFINITE = 0xFFFFFFFF

	// CONDITION_VARIABLE_LOCKMODE_SHARED tells SleepConditionVariableSRW the
	// lock is held in shared mode.
	CONDITION_VARIABLE_LOCKMODE_SHARED = 0x1
)

// CONDITION_VARIABLE is a condition variable. The zero value has no waiters,
// as after InitializeConditionVariable.
type CONDITION_VARIABLE = slimsync.CondVar

// InitializeConditionVariable resets cv. cv must not have waiters.
func InitializeConditionVariable(cv *CONDITION_VARIABLE) {
	*cv = CONDITION_VARIABLE{}
}

// SleepConditionVariableCS releases cs, waits for a wake or for ms
// milliseconds, and enters cs again. It returns false if the timeout expired.
func SleepConditionVariableCS(cv *CONDITION_VARIABLE, cs *CRITICAL_SECTION, ms uint32) bool {
	return sleep(cv, cs, ms)
}

// SleepConditionVariableSRW is SleepConditionVariableCS for an SRW lock held
// exclusively, or shared when flags has CONDITION_VARIABLE_LOCKMODE_SHARED.
func SleepConditionVariableSRW(cv *CONDITION_VARIABLE, l *SRWLOCK, ms uint32, flags uint32) bool {
	var locker sync.Locker = l
	if flags&CONDITION_VARIABLE_LOCKMODE_SHARED != 0 {
		locker = l.RLocker()
	}
	return sleep(cv, locker, ms)
}

func sleep(cv *CONDITION_VARIABLE, l sync.Locker, ms uint32) bool {
	if ms == INFINITE {
		cv.Wait(l)
		return true
	}
	return cv.WaitTimeout(l, time.Duration(ms)*time.Millisecond)
}

// WakeConditionVariable wakes the longest-waiting sleeper on cv, if any.
func WakeConditionVariable(cv *CONDITION_VARIABLE) { cv.Signal() }

// WakeAllConditionVariable wakes every sleeper on cv.
func WakeAllConditionVariable(cv *CONDITION_VARIABLE) { cv.Broadcast() }
