package taskpool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitRunsOffCallerGoroutine(t *testing.T) {
	p := New(2, 4)
	defer p.Close()

	done := make(chan struct{})
	var ranOnWorker int32

	p.Submit(func() {
		atomic.StoreInt32(&ranOnWorker, 1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}

	if atomic.LoadInt32(&ranOnWorker) != 1 {
		t.Error("job did not execute")
	}
}

func TestMultipleJobsAllComplete(t *testing.T) {
	p := New(4, 16)
	var count int32
	n := 50
	done := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		p.Submit(func() {
			atomic.AddInt32(&count, 1)
			done <- struct{}{}
		})
	}

	for i := 0; i < n; i++ {
		<-done
	}
	p.Close()

	if int(count) != n {
		t.Errorf("expected %d completions, got %d", n, count)
	}
}
