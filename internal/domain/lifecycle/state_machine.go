// Пакет lifecycle — конечный автомат жизненного цикла артефактов
// одного запроса генерации видео.
//
// Created → Populated → Encoded → Delivered → Cleaned.
// Сбой в любом состоянии до Delivered переводит автомат сразу в Cleaned
// с ошибкой. Из Delivered всегда переходим в Cleaned, даже если
// передача клиенту не удалась.
//
// Потокобезопасен через sync.RWMutex.
package lifecycle

import (
	"fmt"
	"sync"
	"time"
)

// State — состояние артефактов запроса.
type State string

const (
	// StateCreated — имена артефактов выделены, файлов ещё нет
	StateCreated State = "created"
	// StatePopulated — манифест записан
	StatePopulated State = "populated"
	// StateEncoded — кодировщик создал видео
	StateEncoded State = "encoded"
	// StateDelivered — видео передано вызывающему
	StateDelivered State = "delivered"
	// StateCleaned — артефакты удалены (конечное состояние)
	StateCleaned State = "cleaned"
)

// TransitionRecord — запись о переходе между состояниями.
type TransitionRecord struct {
	From      State
	To        State
	Timestamp time.Time
}

// validTransitions — матрица допустимых переходов.
// Переход в Cleaned допустим из любого нефинального состояния.
var validTransitions = map[State]map[State]bool{
	StateCreated:   {StatePopulated: true, StateCleaned: true},
	StatePopulated: {StateEncoded: true, StateCleaned: true},
	StateEncoded:   {StateDelivered: true, StateCleaned: true},
	StateDelivered: {StateCleaned: true},
	StateCleaned:   {},
}

// StateMachine — автомат жизненного цикла артефактов одного запроса.
type StateMachine struct {
	mu      sync.RWMutex
	current State
	failure error
	history []TransitionRecord
}

// NewStateMachine создаёт автомат в состоянии Created.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateCreated,
		history: make([]TransitionRecord, 0, 4),
	}
}

// Current возвращает текущее состояние.
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Failure возвращает ошибку, с которой автомат ушёл в Cleaned, или nil.
func (sm *StateMachine) Failure() error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.failure
}

// TransitionTo выполняет переход в указанное состояние.
func (sm *StateMachine) TransitionTo(target State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.transitionLocked(target)
}

// Fail фиксирует сбой и переводит автомат в Cleaned.
// Повторный вызов в Cleaned не меняет первую ошибку.
func (sm *StateMachine) Fail(err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current == StateCleaned {
		return
	}
	// Из Delivered сбой уже не меняет исход запроса
	if sm.current != StateDelivered {
		sm.failure = err
	}
	_ = sm.transitionLocked(StateCleaned)
}

// History возвращает историю переходов (копия).
func (sm *StateMachine) History() []TransitionRecord {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	result := make([]TransitionRecord, len(sm.history))
	copy(result, sm.history)
	return result
}

func (sm *StateMachine) transitionLocked(target State) error {
	if !validTransitions[sm.current][target] {
		return &TransitionError{From: sm.current, To: target}
	}
	sm.history = append(sm.history, TransitionRecord{
		From:      sm.current,
		To:        target,
		Timestamp: time.Now().UTC(),
	})
	sm.current = target
	return nil
}

// TransitionError — недопустимый переход.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("INVALID_TRANSITION: переход %s → %s недопустим", e.From, e.To)
}
