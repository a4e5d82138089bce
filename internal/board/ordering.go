// Package board holds the pure move-planning logic for kanban ordering.
// Given where an item sits and where it should land, it computes the sibling
// order adjustments that keep every container's order sequence dense. The
// plan is storage-agnostic; the store applies it inside one transaction.
package board

import (
	"errors"
	"fmt"
)

var ErrIndexOutOfRange = errors.New("target index out of range")

// Shift adjusts the order of every sibling in one container whose order
// falls within [Lower, Upper]. Unbounded shifts (Upper < 0) match every
// sibling at or above Lower.
type Shift struct {
	ContainerID string
	Lower       int
	Upper       int // -1 means no upper bound
	Delta       int
}

// Matches reports whether a sibling at the given order is covered by the shift.
func (s Shift) Matches(order int) bool {
	if order < s.Lower {
		return false
	}
	return s.Upper < 0 || order <= s.Upper
}

// Move describes a requested drag-and-drop. FromCount counts the siblings
// currently in the source container including the moved item; ToCount counts
// the destination container's current siblings and is ignored for
// same-container moves.
type Move struct {
	FromContainer string
	FromOrder     int
	ToContainer   string
	ToOrder       int
	FromCount     int
	ToCount       int
}

// Plan is the set of writes a move requires: zero, one, or two sibling
// shifts, plus the moved entity's final placement. The shifts and the final
// placement must be committed as one atomic unit; applying either half alone
// leaves a container with a duplicate or a gap.
type Plan struct {
	Shifts      []Shift
	ContainerID string
	Order       int
	NoOp        bool
}

// PlanMove validates the move and computes the shift plan.
//
// Same-container semantics: moving down decrements everything in
// (FromOrder, ToOrder]; moving up increments everything in [ToOrder,
// FromOrder). Cross-container: the source closes the gap left behind
// (everything above FromOrder decrements), the destination opens a slot
// (everything at or above ToOrder increments). ToOrder == ToCount appends.
func PlanMove(move Move) (Plan, error) {
	if move.FromOrder < 0 || move.ToOrder < 0 {
		return Plan{}, fmt.Errorf("%w: negative index", ErrIndexOutOfRange)
	}

	if move.FromContainer == move.ToContainer {
		if move.ToOrder >= move.FromCount {
			return Plan{}, fmt.Errorf("%w: index %d in container of %d", ErrIndexOutOfRange, move.ToOrder, move.FromCount)
		}
		plan := Plan{ContainerID: move.FromContainer, Order: move.ToOrder}
		switch {
		case move.ToOrder > move.FromOrder:
			plan.Shifts = []Shift{{
				ContainerID: move.FromContainer,
				Lower:       move.FromOrder + 1,
				Upper:       move.ToOrder,
				Delta:       -1,
			}}
		case move.ToOrder < move.FromOrder:
			plan.Shifts = []Shift{{
				ContainerID: move.FromContainer,
				Lower:       move.ToOrder,
				Upper:       move.FromOrder - 1,
				Delta:       1,
			}}
		default:
			plan.NoOp = true
		}
		return plan, nil
	}

	if move.ToOrder > move.ToCount {
		return Plan{}, fmt.Errorf("%w: index %d in container of %d", ErrIndexOutOfRange, move.ToOrder, move.ToCount)
	}
	return Plan{
		Shifts: []Shift{
			{ContainerID: move.FromContainer, Lower: move.FromOrder + 1, Upper: -1, Delta: -1},
			{ContainerID: move.ToContainer, Lower: move.ToOrder, Upper: -1, Delta: 1},
		},
		ContainerID: move.ToContainer,
		Order:       move.ToOrder,
	}, nil
}

// AppendOrder returns the order value for an item added to the end of a
// container that currently holds count siblings.
func AppendOrder(count int) int {
	return count
}
