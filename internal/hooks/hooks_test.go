package hooks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterWithPriorityOrdersLowFirst(t *testing.T) {
	r := NewRegistry[int]()
	var order []string

	r.RegisterWithPriority(func(int) error { order = append(order, "late"); return nil }, 10)
	r.RegisterWithPriority(func(int) error { order = append(order, "early"); return nil }, -10)
	r.Register(func(int) error { order = append(order, "middle"); return nil })

	r.RunAll(0)
	assert.Equal(t, []string{"early", "middle", "late"}, order)
}

func TestRunEarlyMiddleLateFilterByPriority(t *testing.T) {
	r := NewRegistry[int]()
	var ran []string

	r.RegisterWithPriority(func(int) error { ran = append(ran, "early"); return nil }, -1)
	r.Register(func(int) error { ran = append(ran, "middle"); return nil })
	r.RegisterWithPriority(func(int) error { ran = append(ran, "late"); return nil }, 1)

	r.RunEarly(0)
	assert.Equal(t, []string{"early"}, ran)

	r.RunMiddle(0)
	assert.Equal(t, []string{"early", "middle"}, ran)

	r.RunLate(0)
	assert.Equal(t, []string{"early", "middle", "late"}, ran)
}

func TestRunAllCollectsErrorsButRunsEveryHook(t *testing.T) {
	r := NewRegistry[int]()
	var ran int

	r.Register(func(int) error { ran++; return errors.New("boom") })
	r.Register(func(int) error { ran++; return nil })
	r.Register(func(int) error { ran++; return errors.New("bang") })

	errs := r.RunAll(0)
	assert.Equal(t, 3, ran)
	require.Len(t, errs, 2)
}

func TestRunAllReturnsNilMapWhenNoErrors(t *testing.T) {
	r := NewRegistry[int]()
	r.Register(func(int) error { return nil })

	assert.Nil(t, r.RunAll(0))
}

func TestPanicInHookIsRecoveredAndReportedAsError(t *testing.T) {
	r := NewRegistry[int]()
	var ranAfter bool

	r.Register(func(int) error { panic("kaboom") })
	r.Register(func(int) error { ranAfter = true; return nil })

	errs := r.RunAll(0)
	assert.True(t, ranAfter, "a panicking hook must not block later hooks")
	require.Len(t, errs, 1)
}

func TestCountAndClear(t *testing.T) {
	r := NewRegistry[int]()
	assert.Equal(t, 0, r.Count())

	r.Register(func(int) error { return nil })
	r.Register(func(int) error { return nil })
	assert.Equal(t, 2, r.Count())

	r.Clear()
	assert.Equal(t, 0, r.Count())
}
