// Package store holds what the persistence backends share: sentinel errors and
// query filters. Implementations live in store/postgres and store/memory.
package store

import "errors"

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate")
)

type Direction int

const (
	DirectionAny Direction = iota
	DirectionIncoming
	DirectionOutgoing
)

// RequestFilter selects connection requests involving UserID with the given status.
type RequestFilter struct {
	UserID    int
	Direction Direction
	Status    string
}
