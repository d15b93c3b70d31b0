package simulation

import "errors"

// ErrEntityExists and ErrEntityNotFound are the two conditions every Game
// implementation must distinguish so scope controllers can map them to the
// correct wire status (409 / 404).
var (
	ErrEntityExists   = errors.New("entity already exists")
	ErrEntityNotFound = errors.New("entity not found")
)
