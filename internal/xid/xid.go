package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a random identifier such as "req-3f0c...". Used for request
// correlation ids.
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%s", prefix, uuid.Nil)
	}
	return fmt.Sprintf("%s-%s", prefix, id)
}
