package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed random id, e.g. "ret-1b4e28ba-2fa1-11d2-883f-0016d3cca427".
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		// NewRandom only fails when the entropy source does.
		return fmt.Sprintf("%s-%s", prefix, uuid.Must(uuid.NewUUID()).String())
	}
	if prefix == "" {
		return id.String()
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}
