package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// New generates a new ULID string. ULIDs sort by creation time, which keeps
// tie-breaks on notification listings stable.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Conn identifies a live websocket connection. Connections are never
// persisted, so a random UUID is enough.
func Conn() string {
	return uuid.NewString()
}

// Reference builds the short human-facing code shown to customers and staff,
// e.g. SF483920K7QZ: prefix, the last six digits of the millisecond clock and
// four random base-36 characters. It is not unique on its own; records are
// keyed by New.
func Reference(prefix string, now time.Time) string {
	ms := fmt.Sprintf("%06d", now.UnixMilli()%1_000_000)
	suffix := make([]byte, 4)
	base := big.NewInt(int64(len(referenceAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			panic(fmt.Sprintf("id: read random: %v", err))
		}
		suffix[i] = referenceAlphabet[n.Int64()]
	}
	return prefix + ms + string(suffix)
}
