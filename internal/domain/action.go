package domain

// Action represents the type of trading action to be performed.
type Action int

const (
	ActionHold Action = iota
	ActionOpenLong
	ActionCloseLong
	ActionOpenShort
	ActionCloseShort
)

// action string constants to avoid magic strings
const (
	actionStringHold       = "hold"
	actionStringOpenLong   = "open_long"
	actionStringCloseLong  = "close_long"
	actionStringOpenShort  = "open_short"
	actionStringCloseShort = "close_short"
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionHold:
		return actionStringHold
	case ActionOpenLong:
		return actionStringOpenLong
	case ActionCloseLong:
		return actionStringCloseLong
	case ActionOpenShort:
		return actionStringOpenShort
	case ActionCloseShort:
		return actionStringCloseShort
	default:
		return "unknown"
	}
}

// OrderSide returns the exchange side that carries out the action.
func (a Action) OrderSide() OrderSide {
	switch a {
	case ActionOpenLong, ActionCloseShort:
		return OrderSideBuy
	default:
		return OrderSideSell
	}
}

// IsClose reports whether the action reduces an existing position.
func (a Action) IsClose() bool {
	return a == ActionCloseLong || a == ActionCloseShort
}
