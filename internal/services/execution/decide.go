package execution

import "github.com/vadiminshakov/asterbot/internal/domain"

// Plan is the order sequence for one cycle. Close runs before Open; ActionHold means no leg.
type Plan struct {
	Close domain.Action
	Open  domain.Action
}

// IsHold reports whether the plan sends no orders.
func (p Plan) IsHold() bool {
	return p.Close == domain.ActionHold && p.Open == domain.ActionHold
}

// IsFlip reports whether the plan closes a position and opens the opposite one.
func (p Plan) IsFlip() bool {
	return p.Close != domain.ActionHold && p.Open != domain.ActionHold
}

// String returns a short label for logs.
func (p Plan) String() string {
	switch {
	case p.IsHold():
		return domain.ActionHold.String()
	case p.IsFlip():
		return p.Close.String() + "+" + p.Open.String()
	case p.Close != domain.ActionHold:
		return p.Close.String()
	default:
		return p.Open.String()
	}
}

// Decide maps signal direction and current position side to a plan.
//
//	BUY  x short -> close short, open long
//	BUY  x none  -> open long
//	BUY  x long  -> hold
//	SELL x long  -> close long, open short
//	SELL x none  -> open short
//	SELL x short -> hold
//	HOLD x any   -> hold
func Decide(direction domain.Direction, side domain.PositionSide) Plan {
	switch direction {
	case domain.DirectionBuy:
		switch side {
		case domain.PositionSideShort:
			return Plan{Close: domain.ActionCloseShort, Open: domain.ActionOpenLong}
		case domain.PositionSideNone:
			return Plan{Open: domain.ActionOpenLong}
		}
	case domain.DirectionSell:
		switch side {
		case domain.PositionSideLong:
			return Plan{Close: domain.ActionCloseLong, Open: domain.ActionOpenShort}
		case domain.PositionSideNone:
			return Plan{Open: domain.ActionOpenShort}
		}
	}

	return Plan{}
}
