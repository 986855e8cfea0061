package transport

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/matrix-org/util"
)

// TransactionIDTracker remembers when each request was sent, keyed by the txn_id it carried, so
// the round trip time can be measured when the server echoes the txn_id back. Requests which
// never come back (aborted, failed) are forgotten after the TTL.
type TransactionIDTracker struct {
	cache    *ttlcache.Cache[string, time.Time]
	stopOnce *sync.Once
}

func NewTransactionIDTracker() *TransactionIDTracker {
	c := ttlcache.New[string, time.Time](
		// keep transaction IDs for 5 minutes before forgetting about them
		ttlcache.WithTTL[string, time.Time](5*time.Minute),
		ttlcache.WithDisableTouchOnHit[string, time.Time](),
	)
	go c.Start()
	return &TransactionIDTracker{
		cache:    c,
		stopOnce: &sync.Once{},
	}
}

// New returns a fresh transaction ID and remembers that it was sent at sentAt.
func (t *TransactionIDTracker) New(sentAt time.Time) string {
	txnID := util.RandomString(16)
	t.cache.Set(txnID, sentAt, ttlcache.DefaultTTL)
	return txnID
}

// Done forgets the transaction ID, returning when it was sent and true, or false if it is unknown.
func (t *TransactionIDTracker) Done(txnID string) (time.Time, bool) {
	if txnID == "" {
		return time.Time{}, false
	}
	item := t.cache.Get(txnID)
	if item == nil {
		return time.Time{}, false
	}
	t.cache.Delete(txnID)
	return item.Value(), true
}

func (t *TransactionIDTracker) Len() int {
	return t.cache.Len()
}

// Stop the expiry goroutine. Safe to call more than once.
func (t *TransactionIDTracker) Stop() {
	t.stopOnce.Do(t.cache.Stop)
}
