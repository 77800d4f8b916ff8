package events

import (
	"errors"
	"testing"
)

type recorder struct {
	calls []any
}

func (r *recorder) HandleEvent(_ ID, data any) {
	r.calls = append(r.calls, data)
}

// funcHandler is deliberately not comparable.
type funcHandler func(ID, any)

func (f funcHandler) HandleEvent(id ID, data any) { f(id, data) }

func TestSubscribeRejectsDuplicate(t *testing.T) {
	r := New(4)
	h := &recorder{}

	if err := r.Subscribe(ActionUpdate, h); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	if err := r.Subscribe(ActionUpdate, h); !errors.Is(err, ErrAlreadySubscribed) {
		t.Errorf("duplicate subscribe: got %v, want ErrAlreadySubscribed", err)
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Len after duplicate: got %d, want 1", got)
	}

	// Same handler on another event is a different subscription.
	if err := r.Subscribe(FileClosed, h); err != nil {
		t.Errorf("subscribe other id: %v", err)
	}
}

func TestSubscribeFull(t *testing.T) {
	r := New(2)
	if err := r.Subscribe(ActionUpdate, &recorder{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Subscribe(ActionUpdate, &recorder{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Subscribe(ActionUpdate, &recorder{}); !errors.Is(err, ErrRegistryFull) {
		t.Errorf("subscribe on full registry: got %v, want ErrRegistryFull", err)
	}
}

func TestSubscribeReusesFreedSlot(t *testing.T) {
	r := New(2)
	a, b, c := &recorder{}, &recorder{}, &recorder{}
	_ = r.Subscribe(ActionUpdate, a)
	_ = r.Subscribe(ActionUpdate, b)
	if err := r.Unsubscribe(ActionUpdate, a); err != nil {
		t.Fatal(err)
	}
	if err := r.Subscribe(ActionUpdate, c); err != nil {
		t.Fatalf("subscribe after unsubscribe: %v", err)
	}

	r.Dispatch(ActionUpdate, false, 1)
	if len(a.calls) != 0 || len(b.calls) != 1 || len(c.calls) != 1 {
		t.Errorf("calls: got a=%d b=%d c=%d, want 0 1 1", len(a.calls), len(b.calls), len(c.calls))
	}
}

func TestUnsubscribeMissing(t *testing.T) {
	r := New(2)
	if err := r.Unsubscribe(ActionUpdate, &recorder{}); !errors.Is(err, ErrNotSubscribed) {
		t.Errorf("got %v, want ErrNotSubscribed", err)
	}
}

func TestSubscribeNotComparable(t *testing.T) {
	r := New(2)
	h := funcHandler(func(ID, any) {})
	if err := r.Subscribe(ActionUpdate, h); !errors.Is(err, ErrHandlerNotComparable) {
		t.Errorf("got %v, want ErrHandlerNotComparable", err)
	}
}

func TestDispatchPersistent(t *testing.T) {
	r := New(4)
	h := &recorder{}
	other := &recorder{}
	_ = r.Subscribe(FileClosed, h)
	_ = r.Subscribe(ActionUpdate, other)

	r.Dispatch(FileClosed, false, "a.wav")
	r.Dispatch(FileClosed, false, "b.wav")

	if len(h.calls) != 2 {
		t.Fatalf("calls: got %d, want 2", len(h.calls))
	}
	if h.calls[0] != "a.wav" || h.calls[1] != "b.wav" {
		t.Errorf("data: got %v, want [a.wav b.wav]", h.calls)
	}
	if len(other.calls) != 0 {
		t.Errorf("unrelated handler called %d times", len(other.calls))
	}
}

func TestDispatchOneShot(t *testing.T) {
	r := New(4)
	a, b := &recorder{}, &recorder{}
	_ = r.Subscribe(ActionUpdate, a)
	_ = r.Subscribe(ActionUpdate, b)

	r.Dispatch(ActionUpdate, true, nil)
	r.Dispatch(ActionUpdate, true, nil)

	if len(a.calls) != 1 || len(b.calls) != 1 {
		t.Errorf("calls: got a=%d b=%d, want 1 1", len(a.calls), len(b.calls))
	}
	if got := r.Len(); got != 0 {
		t.Errorf("Len after one-shot: got %d, want 0", got)
	}
}

type order struct {
	name string
	log  *[]string
}

func (o *order) HandleEvent(ID, any) { *o.log = append(*o.log, o.name) }

func TestDispatchSlotOrder(t *testing.T) {
	r := New(4)
	var log []string
	first := &order{name: "first", log: &log}
	second := &order{name: "second", log: &log}
	third := &order{name: "third", log: &log}
	_ = r.Subscribe(ActionUpdate, first)
	_ = r.Subscribe(ActionUpdate, second)
	_ = r.Subscribe(ActionUpdate, third)
	_ = r.Unsubscribe(ActionUpdate, first)
	_ = r.Subscribe(ActionUpdate, first) // takes slot 0 again

	r.Dispatch(ActionUpdate, false, nil)

	want := []string{"first", "second", "third"}
	if len(log) != len(want) {
		t.Fatalf("order: got %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("order[%d]: got %s, want %s", i, log[i], want[i])
		}
	}
}

// reentrant dispatches the event again from inside its handler.
type reentrant struct {
	r     *Registry
	calls int
}

func (h *reentrant) HandleEvent(id ID, _ any) {
	h.calls++
	if h.calls == 1 {
		h.r.Dispatch(id, true, nil)
	}
}

func TestDispatchOneShotReentrant(t *testing.T) {
	r := New(4)
	outer := &reentrant{r: r}
	later := &recorder{}
	_ = r.Subscribe(ActionUpdate, outer)
	_ = r.Subscribe(ActionUpdate, later)

	r.Dispatch(ActionUpdate, true, nil)

	// The nested dispatch still sees outer's slot (cleared only after return)
	// and fires the not-yet-visited later slot exactly once.
	if outer.calls != 2 {
		t.Errorf("outer calls: got %d, want 2", outer.calls)
	}
	if len(later.calls) != 1 {
		t.Errorf("later calls: got %d, want 1", len(later.calls))
	}
	if r.Len() != 0 {
		t.Errorf("Len: got %d, want 0", r.Len())
	}
}

func TestIDString(t *testing.T) {
	if got := FileClosed.String(); got != "file_closed" {
		t.Errorf("got %q, want file_closed", got)
	}
	if got := ID(99).String(); got != "event_99" {
		t.Errorf("got %q, want event_99", got)
	}
}
