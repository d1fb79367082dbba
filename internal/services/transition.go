package services

import "github.com/shopspring/decimal"

// Action is the ledger mutation implied by a message's amount change.
type Action int

const (
	ActionNone Action = iota
	ActionInsert
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "none"
	}
}

// Decide maps the amount extracted before and after a message event to the
// ledger action. A created message has before == 0.
//
//	before  after        action
//	0       >0           insert (if absent)
//	>0      >0 changed   update
//	>0      >0 same      none
//	>0      0            delete
//	0       0            none
func Decide(before, after decimal.Decimal) Action {
	oldPos, newPos := before.IsPositive(), after.IsPositive()
	switch {
	case !oldPos && newPos:
		return ActionInsert
	case oldPos && newPos && !before.Equal(after):
		return ActionUpdate
	case oldPos && !newPos:
		return ActionDelete
	default:
		return ActionNone
	}
}
