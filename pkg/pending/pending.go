// Package pending tracks the single outstanding request an endpoint may
// have in flight at a time, matching spec.md's "Pending Request tracker"
// (§4.3): one correlator, one optional expected full name, one deadline.
// Grounded on the teacher's pkg/exchange retransmit/context machinery,
// simplified to this protocol's single-threaded, single-pending model —
// there is no retransmission here, only timeout detection on loop().
package pending

import (
	"errors"
	"time"

	"github.com/ndnob/onboard/pkg/ndnname"
)

var ErrAlreadyOutstanding = errors.New("pending: a request is already outstanding")

// DefaultTimeout is T_default from spec.md §4.3.
const DefaultTimeout = 4 * time.Second

// Tracker holds at most one outstanding request.
type Tracker struct {
	outstanding  bool
	token        uint64
	expectedName *ndnname.Name
	deadline     time.Time

	// Now defaults to time.Now; tests substitute a controllable clock to
	// exercise timeout behavior deterministically.
	Now func() time.Time
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Send records a fresh outstanding request with the given correlator and
// optional expected full name, and a deadline T_default from now. It is
// undefined (and never exercised by the state machines) to call Send
// again while a request is already outstanding.
func (t *Tracker) Send(token uint64, expectedName *ndnname.Name) error {
	if t.outstanding {
		return ErrAlreadyOutstanding
	}
	t.outstanding = true
	t.token = token
	t.expectedName = expectedName
	t.deadline = t.now().Add(DefaultTimeout)
	return nil
}

// MatchPitToken reports whether the given correlator matches the
// currently outstanding request.
func (t *Tracker) MatchPitToken(token uint64) bool {
	return t.outstanding && t.token == token
}

// Match additionally requires the inbound Data's full name to equal the
// expected name, used for by-name fetches (CA profile, auth cert, temp
// cert). If no expected name was recorded, only the token is checked.
func (t *Tracker) Match(token uint64, fullName ndnname.Name) bool {
	if !t.MatchPitToken(token) {
		return false
	}
	if t.expectedName == nil {
		return true
	}
	return t.expectedName.Equal(fullName)
}

// Expired reports whether the outstanding request's deadline has passed.
func (t *Tracker) Expired() bool {
	return t.outstanding && t.now().After(t.deadline)
}

// Clear marks the tracker idle, called once a request is matched or the
// endpoint transitions away from waiting on it.
func (t *Tracker) Clear() {
	t.outstanding = false
	t.expectedName = nil
}

// Outstanding reports whether a request is currently pending.
func (t *Tracker) Outstanding() bool { return t.outstanding }
