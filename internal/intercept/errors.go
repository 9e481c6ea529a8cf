package intercept

import (
	"errors"
	"fmt"

	"github.com/blackwell-systems/unitreplay/internal/hook"
)

// ErrMismatch matches any MismatchError via errors.Is.
var ErrMismatch = errors.New("replay mismatch")

// MismatchError reports that a call issued during replay has no remaining
// matching recorded response: the handler under replay diverged from the
// recorded execution. It is surfaced immediately and never answered with a
// fabricated default, since a default would hide a genuine regression.
type MismatchError struct {
	Signature hook.Signature
	Reason    string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("replay mismatch on %s: %s", e.Signature, e.Reason)
}

func (e *MismatchError) Is(target error) bool { return target == ErrMismatch }

// ErrWriteRejected is returned for mutating calls when the replay session
// was configured to reject writes instead of diverting them to scratch.
var ErrWriteRejected = errors.New("mutating call rejected in replay")
