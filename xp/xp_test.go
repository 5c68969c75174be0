package xp

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSRWLock(t *testing.T) {
	var l SRWLOCK
	InitializeSRWLock(&l)

	AcquireSRWLockShared(&l)
	if !TryAcquireSRWLockShared(&l) {
		t.Fatal("second shared acquire failed")
	}
	if TryAcquireSRWLockExclusive(&l) {
		t.Fatal("exclusive acquire succeeded under readers")
	}
	ReleaseSRWLockShared(&l)
	ReleaseSRWLockShared(&l)

	if !TryAcquireSRWLockExclusive(&l) {
		t.Fatal("exclusive acquire of a free lock failed")
	}
	if TryAcquireSRWLockShared(&l) {
		t.Fatal("shared acquire succeeded under a writer")
	}
	ReleaseSRWLockExclusive(&l)

	var counter int
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				AcquireSRWLockExclusive(&l)
				counter++
				ReleaseSRWLockExclusive(&l)
			}
		}()
	}
	wg.Wait()
	if counter != 8*500 {
		t.Fatalf("counter = %d, want %d", counter, 8*500)
	}
}

func TestCriticalSection_Recursive(t *testing.T) {
	var cs CRITICAL_SECTION
	InitializeCriticalSection(&cs)
	defer DeleteCriticalSection(&cs)

	EnterCriticalSection(&cs)
	EnterCriticalSection(&cs)
	if !TryEnterCriticalSection(&cs) {
		t.Fatal("owner could not re-enter")
	}

	entered := make(chan bool)
	go func() { entered <- TryEnterCriticalSection(&cs) }()
	if <-entered {
		t.Fatal("another goroutine entered an owned critical section")
	}

	LeaveCriticalSection(&cs)
	LeaveCriticalSection(&cs)
	go func() { entered <- TryEnterCriticalSection(&cs) }()
	if <-entered {
		t.Fatal("critical section released before the last leave")
	}

	LeaveCriticalSection(&cs)
	acquired := make(chan struct{})
	go func() {
		EnterCriticalSection(&cs)
		close(acquired)
		LeaveCriticalSection(&cs)
	}()
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("critical section not released")
	}
}

func TestCriticalSection_LeaveByNonOwnerPanics(t *testing.T) {
	var cs CRITICAL_SECTION
	defer func() {
		if recover() == nil {
			t.Fatal("LeaveCriticalSection of an unowned section did not panic")
		}
	}()
	LeaveCriticalSection(&cs)
}

func TestSleepConditionVariableCS(t *testing.T) {
	var cv CONDITION_VARIABLE
	var cs CRITICAL_SECTION
	InitializeConditionVariable(&cv)
	ready := false

	done := make(chan struct{})
	go func() {
		defer close(done)
		EnterCriticalSection(&cs)
		for !ready {
			SleepConditionVariableCS(&cv, &cs, INFINITE)
		}
		LeaveCriticalSection(&cs)
	}()

	time.Sleep(10 * time.Millisecond)
	EnterCriticalSection(&cs)
	ready = true
	LeaveCriticalSection(&cs)
	WakeConditionVariable(&cv)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter not woken")
	}
}

func TestSleepConditionVariableSRW_Timeout(t *testing.T) {
	var cv CONDITION_VARIABLE
	var l SRWLOCK

	AcquireSRWLockExclusive(&l)
	start := time.Now()
	if SleepConditionVariableSRW(&cv, &l, 10, 0) {
		t.Fatal("sleep without a wake reported success")
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatal("sleep returned before its timeout")
	}
	if TryAcquireSRWLockShared(&l) {
		t.Fatal("lock not held exclusively after the sleep")
	}
	ReleaseSRWLockExclusive(&l)

	AcquireSRWLockShared(&l)
	if SleepConditionVariableSRW(&cv, &l, 0, CONDITION_VARIABLE_LOCKMODE_SHARED) {
		t.Fatal("zero timeout sleep reported success")
	}
	if !TryAcquireSRWLockShared(&l) {
		t.Fatal("lock not held shared after the sleep")
	}
	ReleaseSRWLockShared(&l)
	ReleaseSRWLockShared(&l)
}

func TestWakeAllConditionVariable(t *testing.T) {
	var cv CONDITION_VARIABLE
	var l SRWLOCK
	const n = 6
	generation := 0

	var woken atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			AcquireSRWLockShared(&l)
			for generation == 0 {
				SleepConditionVariableSRW(&cv, &l, INFINITE, CONDITION_VARIABLE_LOCKMODE_SHARED)
			}
			ReleaseSRWLockShared(&l)
			woken.Add(1)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	AcquireSRWLockExclusive(&l)
	generation = 1
	ReleaseSRWLockExclusive(&l)
	WakeAllConditionVariable(&cv)
	wg.Wait()

	if woken.Load() != n {
		t.Fatalf("woken = %d, want %d", woken.Load(), n)
	}
}

func TestInitOnceExecuteOnce(t *testing.T) {
	var once INIT_ONCE
	InitOnceInitialize(&once)

	var calls atomic.Int32
	fail := true
	fn := func(o *INIT_ONCE, param any, context *any) bool {
		calls.Add(1)
		if fail {
			return false
		}
		*context = param.(string) + "!"
		return true
	}

	var ctx any
	if InitOnceExecuteOnce(&once, fn, "hello", &ctx) {
		t.Fatal("failing callback reported success")
	}
	fail = false

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var c any
			if !InitOnceExecuteOnce(&once, fn, "hello", &c) || c != "hello!" {
				t.Errorf("InitOnceExecuteOnce = %v", c)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 2 {
		t.Fatalf("callback ran %d times, want 2", calls.Load())
	}
}

func TestInitOnceBeginInitialize_Sync(t *testing.T) {
	var once INIT_ONCE
	var pending bool
	var ctx any

	if InitOnceBeginInitialize(&once, INIT_ONCE_CHECK_ONLY, &pending, &ctx) {
		t.Fatal("check-only succeeded before initialization")
	}
	if InitOnceBeginInitialize(&once, INIT_ONCE_CHECK_ONLY|INIT_ONCE_ASYNC, &pending, &ctx) {
		t.Fatal("check-only with extra flags succeeded")
	}

	if !InitOnceBeginInitialize(&once, 0, &pending, &ctx) || !pending {
		t.Fatal("first begin did not make the caller the initializer")
	}
	if !InitOnceComplete(&once, INIT_ONCE_INIT_FAILED, nil) {
		t.Fatal("failed completion rejected")
	}

	if !InitOnceBeginInitialize(&once, 0, &pending, &ctx) || !pending {
		t.Fatal("begin after a failure did not restart initialization")
	}
	if !InitOnceComplete(&once, 0, 42) {
		t.Fatal("completion rejected")
	}
	if InitOnceComplete(&once, 0, 43) {
		t.Fatal("second completion accepted")
	}

	if !InitOnceBeginInitialize(&once, INIT_ONCE_CHECK_ONLY, &pending, &ctx) || pending || ctx != 42 {
		t.Fatalf("check-only after init = %v, %v", pending, ctx)
	}
}

func TestInitOnceBeginInitialize_Async(t *testing.T) {
	var once INIT_ONCE
	var pending bool
	var ctx any

	for range 2 {
		if !InitOnceBeginInitialize(&once, INIT_ONCE_ASYNC, &pending, &ctx) || !pending {
			t.Fatal("async begin not pending")
		}
	}
	if InitOnceBeginInitialize(&once, 0, &pending, &ctx) {
		t.Fatal("sync begin succeeded during an async initialization")
	}
	if InitOnceComplete(&once, INIT_ONCE_ASYNC|INIT_ONCE_INIT_FAILED, nil) {
		t.Fatal("async failure accepted")
	}
	if !InitOnceComplete(&once, INIT_ONCE_ASYNC, "first") {
		t.Fatal("first async completion rejected")
	}
	if InitOnceComplete(&once, INIT_ONCE_ASYNC, "second") {
		t.Fatal("losing async completion accepted")
	}
	if !InitOnceBeginInitialize(&once, INIT_ONCE_ASYNC, &pending, &ctx) || pending || ctx != "first" {
		t.Fatalf("begin after completion = %v, %v", pending, ctx)
	}
	if InitOnceBeginInitialize(&once, 0x10, &pending, &ctx) {
		t.Fatal("unknown flags accepted")
	}
}
