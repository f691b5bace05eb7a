package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusTodo.Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.True(t, StatusDone.Valid())
	assert.False(t, Status("").Valid())
	assert.False(t, Status("finished").Valid())
}

func TestChangeNewlyDone(t *testing.T) {
	assert.True(t, Change{Prev: StatusTodo, Next: StatusDone}.NewlyDone())
	assert.True(t, Change{Prev: "", Next: StatusDone}.NewlyDone())
	assert.True(t, Change{Prev: StatusInProgress, Next: StatusDone}.NewlyDone())

	// Re-saving an already done item is not a new completion.
	assert.False(t, Change{Prev: StatusDone, Next: StatusDone}.NewlyDone())
	assert.False(t, Change{Prev: StatusDone, Next: StatusTodo}.NewlyDone())
	assert.False(t, Change{Prev: StatusTodo, Next: StatusInProgress}.NewlyDone())
}
