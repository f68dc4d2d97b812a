package crypto

import (
	"sync"
	"testing"
)

func TestInit_Idempotent(t *testing.T) {
	t.Parallel()

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := Init(); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
}

func TestInit_Concurrent(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := Init(); err != nil {
				t.Errorf("Init() error = %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestSelfTest(t *testing.T) {
	t.Parallel()

	if err := selfTest(); err != nil {
		t.Errorf("selfTest() error = %v", err)
	}
}
