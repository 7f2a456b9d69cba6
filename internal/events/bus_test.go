package events

import (
	"testing"
)

func TestBus_PublishInRegistrationOrder(t *testing.T) {
	bus := NewBus()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		bus.Subscribe(TransactionsChanged, func() {
			got = append(got, i)
		})
	}

	bus.Publish(TransactionsChanged)

	if len(got) != 5 {
		t.Fatalf("expected 5 deliveries, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Errorf("delivery %d: expected handler %d, got %d", i, i, v)
		}
	}
}

func TestBus_TopicsAreIndependent(t *testing.T) {
	bus := NewBus()

	var transactions, categories int
	bus.Subscribe(TransactionsChanged, func() { transactions++ })
	bus.Subscribe(CategoriesChanged, func() { categories++ })

	bus.Publish(TransactionsChanged)
	bus.Publish(TransactionsChanged)
	bus.Publish(CategoriesChanged)

	if transactions != 2 {
		t.Errorf("expected 2 transaction notifications, got %d", transactions)
	}
	if categories != 1 {
		t.Errorf("expected 1 category notification, got %d", categories)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var calls int
	unsubscribe := bus.Subscribe(CategoriesChanged, func() { calls++ })

	bus.Publish(CategoriesChanged)
	unsubscribe()
	bus.Publish(CategoriesChanged)

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestBus_UnsubscribeTwiceIsHarmless(t *testing.T) {
	bus := NewBus()

	var a, b int
	unsubscribe := bus.Subscribe(TransactionsChanged, func() { a++ })
	bus.Subscribe(TransactionsChanged, func() { b++ })

	unsubscribe()
	unsubscribe()
	bus.Publish(TransactionsChanged)

	if a != 0 {
		t.Errorf("unsubscribed handler was called %d times", a)
	}
	if b != 1 {
		t.Errorf("expected remaining handler called once, got %d", b)
	}
}

func TestBus_UnsubscribeDuringPublishDoesNotDisturbDelivery(t *testing.T) {
	bus := NewBus()

	var got []string
	var unsubscribeSelf, unsubscribeThird func()

	bus.Subscribe(TransactionsChanged, func() { got = append(got, "first") })
	unsubscribeSelf = bus.Subscribe(TransactionsChanged, func() {
		got = append(got, "second")
		unsubscribeSelf()
		unsubscribeThird()
	})
	unsubscribeThird = bus.Subscribe(TransactionsChanged, func() { got = append(got, "third") })

	// The in-flight publish still reaches every handler registered when it
	// started, even though the second handler deregistered itself and the
	// third mid-delivery.
	bus.Publish(TransactionsChanged)
	if len(got) != 3 {
		t.Fatalf("expected 3 deliveries in first publish, got %d: %v", len(got), got)
	}

	got = nil
	bus.Publish(TransactionsChanged)
	if len(got) != 1 || got[0] != "first" {
		t.Errorf("expected only the first handler after unsubscribes, got %v", got)
	}
}

func TestBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus()

	var after int
	bus.Subscribe(CategoriesChanged, func() { panic("boom") })
	bus.Subscribe(CategoriesChanged, func() { after++ })

	bus.Publish(CategoriesChanged)

	if after != 1 {
		t.Errorf("expected handler after the panicking one to run, got %d calls", after)
	}
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	// Must not panic.
	bus.Publish(TransactionsChanged)
}

func TestTopic_String(t *testing.T) {
	tests := []struct {
		topic Topic
		want  string
	}{
		{TransactionsChanged, "transactions changed"},
		{CategoriesChanged, "categories changed"},
		{Topic(99), "unknown topic"},
	}
	for _, tt := range tests {
		if got := tt.topic.String(); got != tt.want {
			t.Errorf("Topic(%d).String() = %q, want %q", tt.topic, got, tt.want)
		}
	}
}
