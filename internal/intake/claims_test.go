package intake

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvoiceClaims_SeenIgnoresCaseAndSpace(t *testing.T) {
	c := newInvoiceClaims()

	assert.False(t, c.seen("FT 2025/001"))
	c.markArchived("FT 2025/001")

	assert.True(t, c.seen(" ft 2025/001 "))
	assert.False(t, c.seen("FT 2025/002"))
}

func TestInvoiceClaims_EmptyNumberNeverHeldOrSeen(t *testing.T) {
	c := newInvoiceClaims()

	release := c.acquire("  ")
	// a second acquire would block if the empty number were held
	c.acquire("")()
	release()

	c.markArchived("")
	assert.False(t, c.seen(""))
}

func TestInvoiceClaims_AcquireSerializesSameNumber(t *testing.T) {
	c := newInvoiceClaims()

	var (
		wg      sync.WaitGroup
		inside  int32
		maxSeen int32
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := c.acquire("FT 1")
			defer release()

			n := atomic.AddInt32(&inside, 1)
			if n > atomic.LoadInt32(&maxSeen) {
				atomic.StoreInt32(&maxSeen, n)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
}

func TestInvoiceClaims_DifferentNumbersDoNotBlock(t *testing.T) {
	c := newInvoiceClaims()

	release := c.acquire("FT 1")
	defer release()

	done := make(chan struct{})
	go func() {
		c.acquire("FT 2")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire of a different number blocked")
	}
}
