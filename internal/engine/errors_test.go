package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Delivery(t *testing.T) {
	cause := errors.New("403 forbidden")
	err := error(newDeliveryError(7, "c1", cause))

	assert.True(t, IsDeliveryError(err))
	assert.False(t, IsPanicError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "DELIVERY_FAILED")
}

func TestRuntimeError_Panic(t *testing.T) {
	err := error(newPanicError(3, Event{Type: EventTypeTask}, "boom"))

	assert.True(t, IsPanicError(err))
	assert.False(t, IsDeliveryError(err))
	assert.Contains(t, err.Error(), "HANDLER_PANIC")
}
