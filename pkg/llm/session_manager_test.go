package llm

import (
	"testing"
	"time"
)

func TestSessionManagerScopes(t *testing.T) {
	tests := []struct {
		name     string
		global   bool
		wantSame bool
	}{
		{name: "per session", global: false, wantSame: false},
		{name: "global", global: true, wantSame: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewSessionManager(tt.global)
			a := sm.Get("alice")
			b := sm.Get("bob")
			if (a == b) != tt.wantSame {
				t.Fatalf("same session = %v, want %v", a == b, tt.wantSame)
			}
			if sm.Get("alice") != a {
				t.Fatalf("Get must return the existing session")
			}
		})
	}
}

func TestSessionMemoryIsolation(t *testing.T) {
	sm := NewSessionManager(false)
	sm.Get("alice").Memory.Write(MemoryLastAddedProduct, "widget")

	if _, ok := sm.Get("bob").Memory.Read(MemoryLastAddedProduct); ok {
		t.Fatalf("memory leaked across sessions")
	}
	v, ok := sm.Get("alice").Memory.Read(MemoryLastAddedProduct)
	if !ok || v != "widget" {
		t.Fatalf("memory read = %v, %v", v, ok)
	}
}

func TestSessionManagerDrop(t *testing.T) {
	sm := NewSessionManager(false)
	first := sm.Get("alice")
	first.History.Add(NewUserMessage("hi"))

	sm.Drop("alice")
	second := sm.Get("alice")
	if second == first || second.History.Len() != 0 {
		t.Fatalf("Drop should start a fresh session")
	}
}

func TestAcquireAfterDropUsesFreshSession(t *testing.T) {
	for _, global := range []bool{false, true} {
		sm := NewSessionManager(global)
		held := sm.Acquire("alice")
		held.Memory.Write(MemoryLastAddedProduct, "stale")

		got := make(chan *Session, 1)
		go func() {
			s := sm.Acquire("alice")
			s.Memory.Write(MemoryLastAddedProduct, "fresh")
			s.Unlock()
			got <- s
		}()

		// Give the waiter time to block on the held session.
		time.Sleep(20 * time.Millisecond)
		sm.Drop("alice")
		held.Unlock()

		waiter := <-got
		if waiter == held {
			t.Fatalf("global=%v: waiter ran on the dropped session", global)
		}
		if sm.Get("alice") != waiter {
			t.Fatalf("global=%v: waiter's session is not the live one", global)
		}
		if v, _ := sm.Get("alice").Memory.Read(MemoryLastAddedProduct); v != "fresh" {
			t.Fatalf("global=%v: live memory = %v, want fresh", global, v)
		}
	}
}

func TestEmptySessionIDMapsToGlobal(t *testing.T) {
	sm := NewSessionManager(false)
	if sm.Key("") != GlobalSessionID {
		t.Fatalf("empty id should resolve to the global session")
	}
}
