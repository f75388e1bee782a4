// Package xid generates prefixed, collision-resistant identifiers for
// persisted rows (sale records, user accounts).
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an id of the form "<prefix>-<unixnano>-<random hex>". The
// timestamp component keeps ids roughly insertion-ordered, which the record
// store relies on as a stable tie-break when sorting by date.
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
