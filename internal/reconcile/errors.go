package reconcile

import (
	"errors"
	"fmt"

	"github.com/jcieslar/webhooks/internal/db"
)

// ErrOrderNotFound indicates the notification names an order we do not track.
var ErrOrderNotFound = db.ErrOrderNotFound

// MalformedEventError reports a notification that lacks data its transition
// requires, such as the sub-event describing a failed pickup. The unit of work
// is rolled back.
type MalformedEventError struct {
	State  string
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %s event: %s", e.State, e.Reason)
}

// IsMalformed reports whether err is or wraps a MalformedEventError.
func IsMalformed(err error) bool {
	var target *MalformedEventError
	return errors.As(err, &target)
}
