// Package deferred buffers lazily evaluated values grouped by an owning
// container. Values are produced only when their container is retrieved, which
// lets callers capture state that does not exist yet at registration time,
// such as identifiers assigned by a later save.
package deferred

import (
	"errors"
	"fmt"
)

// Producer computes a deferred value. It runs at most once per retrieval.
type Producer func() (any, error)

// Value returns a Producer that yields v.
func Value(v any) Producer {
	return func() (any, error) { return v, nil }
}

// ErrContainerNotFound is returned when retrieving a container that never had
// a producer stored against it.
var ErrContainerNotFound = errors.New("container not found")

// EvaluationError identifies the deferred value whose producer failed.
type EvaluationError struct {
	Container any
	Key       string
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating deferred value %q of %v: %v", e.Key, e.Container, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

type entry struct {
	keys      []string
	producers map[string]Producer
}

// Map stores producers keyed by (container, key). It is not safe for
// concurrent use; one Map belongs to one unit of work.
type Map[C comparable] struct {
	containers []C
	entries    map[C]*entry
}

// NewMap creates an empty Map.
func NewMap[C comparable]() *Map[C] {
	return &Map[C]{entries: make(map[C]*entry)}
}

// Store registers p under (container, key). An existing producer for the same
// pair is replaced without being evaluated.
func (m *Map[C]) Store(container C, key string, p Producer) {
	e, ok := m.entries[container]
	if !ok {
		e = &entry{producers: make(map[string]Producer)}
		m.entries[container] = e
		m.containers = append(m.containers, container)
	}

	if _, exists := e.producers[key]; !exists {
		e.keys = append(e.keys, key)
	}

	e.producers[key] = p
}

// HasContainer reports whether any key has been stored for container.
func (m *Map[C]) HasContainer(container C) bool {
	_, ok := m.entries[container]
	return ok
}

// Containers returns the containers in the order they were first stored.
func (m *Map[C]) Containers() []C {
	out := make([]C, len(m.containers))
	copy(out, m.containers)

	return out
}

// Keys returns the keys stored for container in first-store order.
func (m *Map[C]) Keys(container C) []string {
	e, ok := m.entries[container]
	if !ok {
		return nil
	}

	out := make([]string, len(e.keys))
	copy(out, e.keys)

	return out
}

// Len returns the number of containers.
func (m *Map[C]) Len() int {
	return len(m.containers)
}

// CalculateAndRetrieve evaluates every producer stored for container and
// returns the realized values by key. Producers of other containers are not
// touched.
func (m *Map[C]) CalculateAndRetrieve(container C) (map[string]any, error) {
	e, ok := m.entries[container]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrContainerNotFound, container)
	}

	result := make(map[string]any, len(e.keys))

	for _, key := range e.keys {
		v, err := e.producers[key]()
		if err != nil {
			return nil, &EvaluationError{Container: container, Key: key, Err: err}
		}

		result[key] = v
	}

	return result, nil
}
