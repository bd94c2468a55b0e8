// Package group drives the shared-tab invite flow: a creator opens a
// group for the table and shows a QR code; scanners of that code join
// the same (bar, table, group) context.
package group

import (
	"errors"
	"fmt"
)

type State string

const (
	StateNoGroup      State = "NO_GROUP"
	StateGroupCreated State = "GROUP_CREATED"
	StateQRDisplayed  State = "QR_DISPLAYED"
	StateScanned      State = "SCANNED"
	StateJoined       State = "JOINED"
)

var ErrBadTransition = errors.New("invalid invite transition")

var validNext = map[State]map[State]bool{
	StateNoGroup:      {StateGroupCreated: true},
	StateGroupCreated: {StateQRDisplayed: true},
	StateQRDisplayed:  {},
	StateScanned:      {StateJoined: true},
	StateJoined:       {},
}

// Coordinator tracks one device's position in the invite flow. A failed
// group creation leaves it at NoGroup so the user can retry; a failed
// join leaves it at Scanned.
type Coordinator struct {
	state State
}

// NewCreator starts the inviting side at NoGroup.
func NewCreator() *Coordinator { return &Coordinator{state: StateNoGroup} }

// NewScanner starts the joining side at Scanned.
func NewScanner() *Coordinator { return &Coordinator{state: StateScanned} }

func (c *Coordinator) State() State { return c.state }

func (c *Coordinator) To(next State) error {
	if !validNext[c.state][next] {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.state, next)
	}
	c.state = next
	return nil
}
