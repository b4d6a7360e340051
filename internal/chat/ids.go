package chat

import (
	"fmt"

	"github.com/google/uuid"
)

// newID builds an identifier that sorts roughly by creation time: the epoch
// milliseconds followed by a random suffix to break ties.
func newID(millis int64) string {
	return fmt.Sprintf("%d_%s", millis, uuid.NewString()[:8])
}
