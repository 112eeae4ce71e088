package storage

import (
	"sync"
	"testing"
	"time"
)

func TestCooldownStore_InCooldown(t *testing.T) {
	store := NewCooldownStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if store.InCooldown("cpu", base, time.Hour) {
		t.Error("Expected unknown key to be outside cooldown")
	}

	store.Record("cpu", base)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"same instant", base, true},
		{"inside window", base.Add(59 * time.Minute), true},
		{"exactly at boundary", base.Add(time.Hour), false},
		{"after window", base.Add(2 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.InCooldown("cpu", tt.at, time.Hour); got != tt.want {
				t.Errorf("InCooldown() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCooldownStore_RecordOverwrites(t *testing.T) {
	store := NewCooldownStore()
	first := time.Unix(1000, 0)
	second := time.Unix(2000, 0)

	store.Record("mem", first)
	store.Record("mem", second)

	got, ok := store.LastNotified("mem")
	if !ok {
		t.Fatal("Expected key to be present")
	}
	if !got.Equal(second) {
		t.Errorf("Expected %v, got %v", second, got)
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 key, got %d", store.Len())
	}
}

func TestCooldownStore_ConcurrentAccess(t *testing.T) {
	store := NewCooldownStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Record("key", time.Unix(int64(i), 0))
			store.InCooldown("key", time.Unix(int64(i), 0), time.Second)
		}(i)
	}
	wg.Wait()

	if store.Len() != 1 {
		t.Errorf("Expected 1 key, got %d", store.Len())
	}
}
