package fanout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/alice-bridge/internal/model"
)

func TestRegistry_DispatchOrderAndPayload(t *testing.T) {
	r := NewRegistry(nil)

	var calls []int
	var seen []*model.Message
	for i := 0; i < 5; i++ {
		i := i
		r.Register(model.EventMessage, func(msg *model.Message) error {
			calls = append(calls, i)
			seen = append(seen, msg)
			return nil
		})
	}

	msg := &model.Message{Topic: model.TopicCoreHeartbeat, Payload: []byte(`{}`)}
	failed := r.Dispatch(model.EventMessage, msg)

	assert.Equal(t, 0, failed)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, calls)
	for _, m := range seen {
		assert.Same(t, msg, m)
	}
}

func TestRegistry_DuplicateRegistrationRunsTwice(t *testing.T) {
	r := NewRegistry(nil)

	count := 0
	cb := CallbackFunc(func(*model.Message) { count++ })
	r.Register(model.EventConnected, cb)
	r.Register(model.EventConnected, cb)

	r.Dispatch(model.EventConnected, nil)

	assert.Equal(t, 2, count)
	assert.Equal(t, 2, r.Len(model.EventConnected))
}

func TestRegistry_DispatchWithoutSubscribers(t *testing.T) {
	r := NewRegistry(nil)

	require.NotPanics(t, func() {
		assert.Equal(t, 0, r.Dispatch(model.EventMessage, &model.Message{}))
		assert.Equal(t, 0, r.Dispatch(model.EventKind("unknown"), nil))
	})
}

func TestRegistry_KindsAreIndependent(t *testing.T) {
	r := NewRegistry(nil)

	connected, messages := 0, 0
	r.Register(model.EventConnected, CallbackFunc(func(*model.Message) { connected++ }))
	r.Register(model.EventMessage, CallbackFunc(func(*model.Message) { messages++ }))

	r.Dispatch(model.EventConnected, nil)

	assert.Equal(t, 1, connected)
	assert.Equal(t, 0, messages)
}

func TestRegistry_FailingCallbackIsIsolated(t *testing.T) {
	r := NewRegistry(nil)

	var calls []string
	r.Register(model.EventMessage, func(*model.Message) error {
		calls = append(calls, "first")
		return errors.New("bad payload")
	})
	r.Register(model.EventMessage, func(*model.Message) error {
		calls = append(calls, "second")
		panic("boom")
	})
	r.Register(model.EventMessage, func(*model.Message) error {
		calls = append(calls, "third")
		return nil
	})

	failed := r.Dispatch(model.EventMessage, &model.Message{Topic: "t"})

	assert.Equal(t, 2, failed)
	assert.Equal(t, []string{"first", "second", "third"}, calls)
}
