// Package tsid generates time-sorted, k-sortable identifiers for records
// that need an index-friendly primary key instead of a random UUID:
// definitions, bindings, and audit entries persisted by the platform
// repositories all call Generate for their ID field.
package tsid

import (
	"crypto/rand"
	"sync"
	"time"
)

const (
	epoch          int64 = 1700000000000 // 2023-11-14T22:13:20Z, arbitrary recent epoch
	timestampBits        = 42
	counterBits          = 22
	counterMask    int64 = (1 << counterBits) - 1
)

var (
	mu      sync.Mutex
	lastMs  int64
	counter int64
)

// Generate returns a new id. Ids generated in the same millisecond share
// the timestamp component and are distinguished by a monotonic counter;
// crossing into a new millisecond resets the counter. The result is
// formatted as a fixed-width base32 string so lexicographic order matches
// generation order.
func Generate() string {
	mu.Lock()
	now := time.Now().UnixMilli() - epoch
	if now == lastMs {
		counter = (counter + 1) & counterMask
		if counter == 0 {
			// counter wrapped within the same millisecond: spin to the next one
			for now <= lastMs {
				now = time.Now().UnixMilli() - epoch
			}
		}
	} else {
		counter = 0
	}
	lastMs = now
	id := (now << counterBits) | counter
	mu.Unlock()

	return encode(id)
}

// encode renders the id as 13 Crockford-base32 characters (65 bits of
// payload: the 64-bit id plus one low bit of randomness), padding with a
// little randomness so same-millisecond, same-counter collisions across
// process restarts still differ (the counter resets to 0 on restart, so
// the raw id alone is not restart-safe).
func encode(id int64) string {
	var salt [1]byte
	_, _ = rand.Read(salt[:])
	saltBit := uint64(salt[0] & 1)

	const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	v := (uint64(id) << 1) | saltBit

	buf := make([]byte, 13)
	for i := 12; i >= 0; i-- {
		buf[i] = alphabet[v&0x1f]
		v >>= 5
	}
	return string(buf)
}
