package lifecycle

import (
	"errors"
	"sync"
	"testing"
)

// TestHappyPath проверяет полный успешный цикл.
func TestHappyPath(t *testing.T) {
	sm := NewStateMachine()
	if sm.Current() != StateCreated {
		t.Fatalf("начальное состояние = %q, ожидается created", sm.Current())
	}

	for _, s := range []State{StatePopulated, StateEncoded, StateDelivered, StateCleaned} {
		if err := sm.TransitionTo(s); err != nil {
			t.Fatalf("TransitionTo(%s): неожиданная ошибка: %v", s, err)
		}
	}

	if sm.Failure() != nil {
		t.Errorf("Failure() = %v, ожидается nil", sm.Failure())
	}
	if got := len(sm.History()); got != 4 {
		t.Errorf("len(History()) = %d, ожидается 4", got)
	}
}

// TestInvalidTransitions проверяет, что шаги нельзя пропускать.
func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		from []State
		to   State
	}{
		{nil, StateEncoded},
		{nil, StateDelivered},
		{[]State{StatePopulated}, StateDelivered},
		{[]State{StatePopulated, StateEncoded}, StatePopulated},
		{[]State{StateCleaned}, StatePopulated},
	}

	for _, tt := range tests {
		sm := NewStateMachine()
		for _, s := range tt.from {
			if err := sm.TransitionTo(s); err != nil {
				t.Fatalf("подготовка %v: %v", tt.from, err)
			}
		}
		err := sm.TransitionTo(tt.to)
		var te *TransitionError
		if !errors.As(err, &te) {
			t.Errorf("%s → %s: ожидалась TransitionError, получено %v", sm.Current(), tt.to, err)
		}
	}
}

// TestFailGoesToCleaned проверяет переход в Cleaned при сбое из любого состояния.
func TestFailGoesToCleaned(t *testing.T) {
	boom := errors.New("кодировщик упал")

	for _, prefix := range [][]State{
		nil,
		{StatePopulated},
		{StatePopulated, StateEncoded},
	} {
		sm := NewStateMachine()
		for _, s := range prefix {
			_ = sm.TransitionTo(s)
		}
		sm.Fail(boom)

		if sm.Current() != StateCleaned {
			t.Errorf("после Fail() из %v состояние = %q, ожидается cleaned", prefix, sm.Current())
		}
		if !errors.Is(sm.Failure(), boom) {
			t.Errorf("Failure() = %v, ожидается исходная ошибка", sm.Failure())
		}

		// Повторный сбой не затирает первую ошибку
		sm.Fail(errors.New("другая"))
		if !errors.Is(sm.Failure(), boom) {
			t.Errorf("повторный Fail() изменил ошибку: %v", sm.Failure())
		}
	}
}

// TestFailAfterDelivered проверяет, что сбой после передачи не меняет исход.
func TestFailAfterDelivered(t *testing.T) {
	sm := NewStateMachine()
	for _, s := range []State{StatePopulated, StateEncoded, StateDelivered} {
		_ = sm.TransitionTo(s)
	}
	sm.Fail(errors.New("клиент отключился"))

	if sm.Current() != StateCleaned {
		t.Errorf("состояние = %q, ожидается cleaned", sm.Current())
	}
	if sm.Failure() != nil {
		t.Errorf("Failure() = %v, ожидается nil", sm.Failure())
	}
}

// TestConcurrentReads проверяет потокобезопасность чтения.
func TestConcurrentReads(t *testing.T) {
	sm := NewStateMachine()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sm.Current()
			_ = sm.History()
		}()
	}
	_ = sm.TransitionTo(StatePopulated)
	wg.Wait()
}
