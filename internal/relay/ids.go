package relay

import (
	"crypto/rand"
	"log"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// IDGenerator produces candidate room identifiers. The registry retries on
// collision, so generators need not guarantee uniqueness.
type IDGenerator func() RoomID

// UUIDs generates random UUID room identifiers.
func UUIDs() IDGenerator {
	return func() RoomID {
		return RoomID(uuid.NewString())
	}
}

// Words generates memorable identifiers of four words drawn from four distinct
// word lists, e.g. "kitten-waffle-stardust-happy".
func Words() IDGenerator {
	return func() RoomID {
		pools := wordPools()
		words := make([]string, 0, 4)
		for i := 0; i < 4; i++ {
			j := i + randomIndex(len(pools)-i)
			pools[i], pools[j] = pools[j], pools[i]
			words = append(words, pools[i][randomIndex(len(pools[i]))])
		}
		return RoomID(strings.Join(words, "-"))
	}
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}
