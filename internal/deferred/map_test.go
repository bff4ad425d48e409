package deferred_test

import (
	"errors"
	"testing"

	"github.com/persistorai/changelog/internal/deferred"
)

func TestStoreAndRetrieveSingleValue(t *testing.T) {
	m := deferred.NewMap[int]()
	m.Store(5, "A", deferred.Value(2))

	got, err := m.CalculateAndRetrieve(5)
	if err != nil {
		t.Fatalf("CalculateAndRetrieve: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("got %d keys, want 1", len(got))
	}
	if got["A"] != 2 {
		t.Errorf("A = %v, want 2", got["A"])
	}
}

func TestStoreMultipleValuesForContainer(t *testing.T) {
	m := deferred.NewMap[int]()
	m.Store(5, "A", deferred.Value(1))
	m.Store(5, "B", deferred.Value(2))

	got, err := m.CalculateAndRetrieve(5)
	if err != nil {
		t.Fatalf("CalculateAndRetrieve: %v", err)
	}

	if got["A"] != 1 || got["B"] != 2 {
		t.Errorf("got %v, want map[A:1 B:2]", got)
	}
	if keys := m.Keys(5); len(keys) != 2 || keys[0] != "A" || keys[1] != "B" {
		t.Errorf("Keys = %v, want [A B]", keys)
	}
}

func TestLaterValuesOverwriteEarlierValues(t *testing.T) {
	m := deferred.NewMap[int]()
	firstCalled := false

	m.Store(5, "A", func() (any, error) {
		firstCalled = true
		return 1, nil
	})
	m.Store(5, "A", deferred.Value(2))

	got, err := m.CalculateAndRetrieve(5)
	if err != nil {
		t.Fatalf("CalculateAndRetrieve: %v", err)
	}

	if len(got) != 1 || got["A"] != 2 {
		t.Errorf("got %v, want map[A:2]", got)
	}
	if firstCalled {
		t.Error("replaced producer was evaluated")
	}
}

func TestUnknownContainerFails(t *testing.T) {
	m := deferred.NewMap[int]()
	m.Store(5, "A", deferred.Value(2))

	_, err := m.CalculateAndRetrieve(1)
	if !errors.Is(err, deferred.ErrContainerNotFound) {
		t.Fatalf("err = %v, want ErrContainerNotFound", err)
	}
}

func TestContainersAreSeparate(t *testing.T) {
	m := deferred.NewMap[int]()
	m.Store(1, "A", deferred.Value(1))
	m.Store(2, "B", deferred.Value(2))

	one, err := m.CalculateAndRetrieve(1)
	if err != nil {
		t.Fatalf("CalculateAndRetrieve(1): %v", err)
	}
	two, err := m.CalculateAndRetrieve(2)
	if err != nil {
		t.Fatalf("CalculateAndRetrieve(2): %v", err)
	}

	if _, ok := one["B"]; ok {
		t.Error("container 1 contains B")
	}
	if _, ok := two["A"]; ok {
		t.Error("container 2 contains A")
	}
	if one["A"] != 1 || two["B"] != 2 {
		t.Errorf("one = %v, two = %v", one, two)
	}
}

func TestWorkIsDeferred(t *testing.T) {
	m := deferred.NewMap[int]()
	value := 0
	set := func(n int) deferred.Producer {
		return func() (any, error) {
			value = n
			return n, nil
		}
	}

	m.Store(1, "A", set(1))
	m.Store(1, "A", set(2))
	m.Store(2, "A", set(3))

	if value != 0 {
		t.Fatalf("value = %d after Store, want 0 (work was not deferred)", value)
	}

	got, err := m.CalculateAndRetrieve(1)
	if err != nil {
		t.Fatalf("CalculateAndRetrieve: %v", err)
	}

	// 1 means the first producer was not replaced, 3 means container 2 ran.
	if value != 2 {
		t.Errorf("value = %d, want 2", value)
	}
	if got["A"] != 2 {
		t.Errorf("A = %v, want 2", got["A"])
	}
}

func TestEachProducerRunsOncePerRetrieval(t *testing.T) {
	m := deferred.NewMap[string]()
	calls := 0
	m.Store("c", "A", func() (any, error) {
		calls++
		return calls, nil
	})

	if _, err := m.CalculateAndRetrieve("c"); err != nil {
		t.Fatalf("CalculateAndRetrieve: %v", err)
	}

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestHasContainer(t *testing.T) {
	m := deferred.NewMap[int]()
	if m.HasContainer(1) {
		t.Fatal("HasContainer(1) = true before Store")
	}

	m.Store(1, "A", deferred.Value(1))

	if !m.HasContainer(1) {
		t.Error("HasContainer(1) = false after Store")
	}
}

func TestProducerErrorIsAttributed(t *testing.T) {
	m := deferred.NewMap[int]()
	boom := errors.New("boom")
	m.Store(7, "Title", func() (any, error) { return nil, boom })

	_, err := m.CalculateAndRetrieve(7)

	var evalErr *deferred.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("err = %v, want *EvaluationError", err)
	}
	if evalErr.Container != 7 || evalErr.Key != "Title" {
		t.Errorf("EvaluationError = {%v %q}, want {7 Title}", evalErr.Container, evalErr.Key)
	}
	if !errors.Is(err, boom) {
		t.Error("errors.Is(err, boom) = false")
	}
}
