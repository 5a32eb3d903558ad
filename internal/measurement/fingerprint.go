package measurement

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

// Fingerprint projects the dedupe-relevant fields of a measurement into a
// stable digest. Reserved for a future dedup stage; nothing counts duplicates
// today.
func Fingerprint(m fetch.Measurement) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%g",
		m.SourceName,
		m.Parameter,
		m.Date.UTC.UTC().Format(time.RFC3339),
		m.Location,
		m.Value,
	)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}
