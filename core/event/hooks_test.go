package event

import "testing"

func TestHooksFireInOrder(t *testing.T) {
	var h Hooks[int]
	var got []int
	h.Add(func(v int) { got = append(got, v) })
	cancel := h.Add(func(v int) { got = append(got, v*10) })
	h.Add(func(v int) { got = append(got, v*100) })

	h.Fire(1)
	cancel()
	h.Fire(2)

	want := []int{1, 10, 100, 2, 200}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if h.Len() != 2 {
		t.Fatalf("expected 2 hooks, got %d", h.Len())
	}
}

func TestHooksCancelDuringFire(t *testing.T) {
	var h Hooks[struct{}]
	calls := 0
	var cancel func()
	cancel = h.Add(func(struct{}) {
		calls++
		cancel()
	})
	h.Fire(struct{}{})
	h.Fire(struct{}{})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestOnceFiresOnce(t *testing.T) {
	var o Once[string]
	calls := 0
	o.Add(func(string) { calls++ })
	if !o.Fire("end") {
		t.Fatal("first fire must succeed")
	}
	if o.Fire("error") {
		t.Fatal("second fire must be a no-op")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if !o.Fired() {
		t.Fatal("expected fired")
	}
}

func TestOnceLateListenerIsPosted(t *testing.T) {
	var posted []func()
	o := Once[int]{Post: func(fn func()) { posted = append(posted, fn) }}
	o.Fire(7)

	got := 0
	o.Add(func(v int) { got = v })
	if got != 0 {
		t.Fatal("late listener must not run synchronously")
	}
	if len(posted) != 1 {
		t.Fatalf("expected 1 posted callback, got %d", len(posted))
	}
	posted[0]()
	if got != 7 {
		t.Fatalf("expected recorded value 7, got %d", got)
	}
}
