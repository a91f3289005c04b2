package checkpoint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitter_SubscribeByKind(t *testing.T) {
	t.Parallel()
	var e emitter

	var all, restores []EventKind
	e.subscribe(AllEvents, func(ev Event) { all = append(all, ev.Kind()) })
	e.subscribe(KindRestore, func(ev Event) { restores = append(restores, ev.Kind()) })

	e.publish(InitializeEvent{})
	e.publish(CheckpointEvent{})
	e.publish(RestoreEvent{})
	e.publish(ErrorEvent{Err: errors.New("x")})

	assert.Equal(t, []EventKind{KindInitialize, KindCheckpoint, KindRestore, KindError}, all)
	assert.Equal(t, []EventKind{KindRestore}, restores)
}

func TestEmitter_Unsubscribe(t *testing.T) {
	t.Parallel()
	var e emitter

	count := 0
	unsubscribe := e.subscribe(KindCheckpoint, func(Event) { count++ })
	e.publish(CheckpointEvent{})
	unsubscribe()
	unsubscribe() // idempotent
	e.publish(CheckpointEvent{})

	assert.Equal(t, 1, count)
}

func TestEmitter_DeliversInSubscriptionOrder(t *testing.T) {
	t.Parallel()
	var e emitter

	var order []int
	for i := range 5 {
		e.subscribe(AllEvents, func(Event) { order = append(order, i) })
	}
	e.publish(RestoreEvent{})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestEvent_ExhaustiveSwitch(t *testing.T) {
	t.Parallel()

	describe := func(ev Event) string {
		switch v := ev.(type) {
		case InitializeEvent:
			return "init " + v.BaseHash
		case CheckpointEvent:
			return "checkpoint " + v.ToHash
		case RestoreEvent:
			return "restore " + v.CommitHash
		case ErrorEvent:
			return "error " + v.Err.Error()
		default:
			return "unknown"
		}
	}

	assert.Equal(t, "init b", describe(InitializeEvent{BaseHash: "b"}))
	assert.Equal(t, "checkpoint c", describe(CheckpointEvent{ToHash: "c"}))
	assert.Equal(t, "restore r", describe(RestoreEvent{CommitHash: "r"}))
	assert.Equal(t, "error e", describe(ErrorEvent{Err: errors.New("e")}))
}
