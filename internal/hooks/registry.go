// Package hooks provides a generic, priority-ordered hook registry used to
// implement the dispatcher's pre/post extension phases and the peer link
// manager's burst-producer registry (spec.md §4.5, §9).
package hooks

import (
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Hook is a generic hook function parameterized over a context type T.
type Hook[T any] func(context T) error

// Entry stores a registered hook along with its name and priority.
type Entry[T any] struct {
	Name     string
	Hook     Hook[T]
	Priority int64 // lower runs first, like Unix nice
}

// Registry manages an ordered, capability-enumerated list of hooks for a
// single context type. There is no dynamic type query: every hook is a
// plain function value registered ahead of time (spec.md §9 design note on
// "registered trait objects behind locks").
type Registry[T any] struct {
	mu    sync.RWMutex
	hooks []Entry[T]
}

// NewRegistry creates an empty hook registry for context type T.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Register adds a hook with default (middle) priority.
func (r *Registry[T]) Register(hook Hook[T]) {
	r.RegisterWithPriority(hook, 0)
}

// RegisterWithPriority adds a hook with an explicit priority. Hooks with
// lower priority values run first.
func (r *Registry[T]) RegisterWithPriority(hook Hook[T], priority int64) {
	name := runtime.FuncForPC(reflect.ValueOf(hook).Pointer()).Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks = append(r.hooks, Entry[T]{Name: name, Hook: hook, Priority: priority})
	sort.SliceStable(r.hooks, func(i, j int) bool {
		return r.hooks[i].Priority < r.hooks[j].Priority
	})
}

func (r *Registry[T]) snapshot(filter func(Entry[T]) bool) []Entry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry[T], 0, len(r.hooks))
	for _, e := range r.hooks {
		if filter == nil || filter(e) {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry[T]) run(context T, filter func(Entry[T]) bool) map[string]error {
	entries := r.snapshot(filter)
	var errs map[string]error

	for _, entry := range entries {
		err := func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					logrus.WithField("hook", entry.Name).Errorf("panic in hook: %v", rec)
					err = fmt.Errorf("panic in hook %s: %v", entry.Name, rec)
				}
			}()
			return entry.Hook(context)
		}()
		if err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[entry.Name] = err
			logrus.WithField("hook", entry.Name).WithError(err).Warn("hook returned an error")
		}
	}
	return errs
}

// RunEarly runs hooks with priority < 0.
func (r *Registry[T]) RunEarly(context T) map[string]error {
	return r.run(context, func(e Entry[T]) bool { return e.Priority < 0 })
}

// RunMiddle runs hooks with priority == 0.
func (r *Registry[T]) RunMiddle(context T) map[string]error {
	return r.run(context, func(e Entry[T]) bool { return e.Priority == 0 })
}

// RunLate runs hooks with priority > 0.
func (r *Registry[T]) RunLate(context T) map[string]error {
	return r.run(context, func(e Entry[T]) bool { return e.Priority > 0 })
}

// RunAll runs every hook in Early, Middle, Late order.
func (r *Registry[T]) RunAll(context T) map[string]error {
	all := make(map[string]error)
	for _, step := range []func(T) map[string]error{r.RunEarly, r.RunMiddle, r.RunLate} {
		for k, v := range step(context) {
			all[k] = v
		}
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

// Count returns the number of registered hooks.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks)
}

// Clear removes every registered hook. Used by tests.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = nil
}
