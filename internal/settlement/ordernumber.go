package settlement

import (
	"encoding/base32"
	"fmt"

	"github.com/google/uuid"
)

// orderNumberLength is the random suffix length after the prefix and dash.
const orderNumberLength = 10

var orderNumberEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateOrderNumber builds "PREFIX-XXXXXXXXXX" with a random base32 suffix.
// Collisions are possible and surface as a unique violation on insert; the
// caller regenerates and retries.
func GenerateOrderNumber(prefix string) string {
	id := uuid.New()
	suffix := orderNumberEncoding.EncodeToString(id[:])[:orderNumberLength]
	return fmt.Sprintf("%s-%s", prefix, suffix)
}
