package state

import (
	"sync"
	"testing"
)

func TestDefaults(t *testing.T) {
	s := New()
	if got := s.Gain(); got != 1 {
		t.Fatalf("default gain = %v, want 1", got)
	}
	if got := s.LED(); got != 0 {
		t.Fatalf("default led = %v, want 0", got)
	}
}

func TestConcurrentReadersSeeWrittenValues(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.SetLED(0.25)
			s.SetGain(0.5)
		}
	}()
	for i := 0; i < 1000; i++ {
		if v := s.LED(); v != 0 && v != 0.25 {
			t.Fatalf("torn led read %v", v)
		}
		if v := s.Gain(); v != 1 && v != 0.5 {
			t.Fatalf("torn gain read %v", v)
		}
	}
	wg.Wait()
}
