package pool

import (
	"sync"
	"testing"
	"time"
)

func TestAcquireTimer_Fires(t *testing.T) {
	timer := AcquireTimer(10 * time.Millisecond)
	defer ReleaseTimer(timer)

	select {
	case <-timer.C:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestAcquireTimer_RecycledTimerRearms(t *testing.T) {
	timer := AcquireTimer(time.Hour)
	ReleaseTimer(timer)

	begin := time.Now()
	recycled := AcquireTimer(20 * time.Millisecond)

	select {
	case tick := <-recycled.C:
		if tick.Sub(begin) < 20*time.Millisecond {
			t.Errorf("recycled timer fired after %v, want at least 20ms", tick.Sub(begin))
		}
	case <-time.After(time.Second):
		t.Fatal("recycled timer did not fire")
	}

	ReleaseTimer(recycled)
}

func TestReleaseTimer_DropsUnconsumedTick(t *testing.T) {
	timer := AcquireTimer(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond) // let it fire without consuming the tick
	ReleaseTimer(timer)

	recycled := AcquireTimer(50 * time.Millisecond)
	defer ReleaseTimer(recycled)

	select {
	case <-recycled.C:
		t.Fatal("stale tick delivered before the new deadline")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestTimerPool_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				timer := AcquireTimer(time.Millisecond)
				<-timer.C
				ReleaseTimer(timer)
			}
		}()
	}
	wg.Wait()
}
