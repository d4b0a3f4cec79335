package realtime

import (
	"sync"
	"testing"
	"time"
)

func TestMailbox_PostDrainOrder(t *testing.T) {
	m := NewMailbox[int]()
	for i := 1; i <= 3; i++ {
		if !m.Post(i) {
			t.Fatalf("Post(%d) rejected", i)
		}
	}
	if m.Len() != 3 {
		t.Errorf("Len %d, want 3", m.Len())
	}
	got := m.Drain()
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("Drain len %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain[%d] %d, want %d", i, got[i], want[i])
		}
	}
	if m.Drain() != nil {
		t.Error("second Drain should be empty")
	}
}

func TestMailbox_WakeSignalled(t *testing.T) {
	m := NewMailbox[string]()
	m.Post("a")
	m.Post("b")
	select {
	case <-m.Wake():
	case <-time.After(time.Second):
		t.Fatal("wake not signalled")
	}
	if got := m.Drain(); len(got) != 2 {
		t.Errorf("Drain len %d, want 2 (one wake may cover several posts)", len(got))
	}
}

func TestMailbox_PostNeverBlocks(t *testing.T) {
	m := NewMailbox[int]()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			m.Post(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Post blocked without a consumer")
	}
	if m.Len() != 10000 {
		t.Errorf("Len %d, want 10000", m.Len())
	}
}

func TestMailbox_ConcurrentPosters(t *testing.T) {
	m := NewMailbox[int]()
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				m.Post(i)
			}
		}()
	}
	wg.Wait()
	if got := len(m.Drain()); got != 1000 {
		t.Errorf("drained %d, want 1000", got)
	}
}

func TestMailbox_CloseRejectsPosts(t *testing.T) {
	m := NewMailbox[int]()
	m.Post(1)
	m.Close()
	if m.Post(2) {
		t.Error("Post after Close should report false")
	}
	if m.Len() != 0 {
		t.Errorf("Len %d after Close, want 0", m.Len())
	}
}
