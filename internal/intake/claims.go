package intake

import (
	"strings"
	"sync"
)

// invoiceClaims tracks invoice numbers within one run. Candidates sharing a
// number take turns through dedup, archive and append, and a number that has
// been archived is a duplicate for the rest of the run even when its ledger
// row could not be written.
type invoiceClaims struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	archived map[string]struct{}
}

func newInvoiceClaims() *invoiceClaims {
	return &invoiceClaims{
		locks:    make(map[string]*sync.Mutex),
		archived: make(map[string]struct{}),
	}
}

func claimKey(invoiceNumber string) string {
	return strings.ToLower(strings.TrimSpace(invoiceNumber))
}

// acquire blocks until no other candidate holds invoiceNumber. Empty numbers
// cannot be compared and are never held.
func (c *invoiceClaims) acquire(invoiceNumber string) (release func()) {
	key := claimKey(invoiceNumber)
	if key == "" {
		return func() {}
	}

	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (c *invoiceClaims) seen(invoiceNumber string) bool {
	key := claimKey(invoiceNumber)
	if key == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.archived[key]
	return ok
}

func (c *invoiceClaims) markArchived(invoiceNumber string) {
	key := claimKey(invoiceNumber)
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.archived[key] = struct{}{}
}
