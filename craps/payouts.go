package craps

// Ratio is a payout expressed as Num:Den, e.g. {3, 2} pays 3 chips for
// every 2 wagered on top of the returned stake.
type Ratio struct {
	Num, Den uint32
}

// payoutTable maps every BetType to its standard payout ratio. Sourced
// from the customary casino-craps paytable (public-domain house rules,
// not any single proprietary rulebook): Pass/Don't Pass and Come/Don't
// Come pay even money, Place bets pay their traditional odds (9:5 on 4/10,
// 7:5 on 5/9, 7:6 on 6/8), Buy bets pay true odds less a vig (39:20 on
// 4/10, 3:2 on 5/9, 23:20 on 6/8), Lay bets pay the inverse of the
// matching Buy ratio (20:39, 2:3, 20:23),
// hardways pay 7:1 (4/10) or 9:1 (6/8), and single-roll proposition bets
// pay their standard one-roll odds.
var payoutTable = [betTypeCount]Ratio{
	BetPassLine:     {1, 1},
	BetDontPass:     {1, 1},
	BetCome:         {1, 1},
	BetDontCome:     {1, 1},
	BetField:        {1, 1}, // 2:1 on 2, 3:1 on 12 handled as special cases in settleOne
	BetPlace4:       {9, 5},
	BetPlace10:      {9, 5},
	BetPlace5:       {7, 5},
	BetPlace9:       {7, 5},
	BetPlace6:       {7, 6},
	BetPlace8:       {7, 6},
	BetBuy4:         {39, 20},
	BetBuy10:        {39, 20},
	BetBuy5:         {3, 2},
	BetBuy9:         {3, 2},
	BetBuy6:         {23, 20},
	BetBuy8:         {23, 20},
	BetLay4:         {20, 39},
	BetLay10:        {20, 39},
	BetLay5:         {2, 3},
	BetLay9:         {2, 3},
	BetLay6:         {20, 23},
	BetLay8:         {20, 23},
	BetHard4:        {7, 1},
	BetHard10:       {7, 1},
	BetHard6:        {9, 1},
	BetHard8:        {9, 1},
	BetAny7:         {4, 1},
	BetAnyCraps:     {7, 1},
	BetHorn:         {3, 1}, // blended; settled per-number in settleOne
	BetHornHigh:     {3, 1},
	BetWorld:        {3, 1},
	BetC2:           {30, 1},
	BetC3:           {15, 1},
	BetC11:          {15, 1},
	BetC12:          {30, 1},
	BetHop2_1:       {30, 1},
	BetHop3_1:       {15, 1},
	BetHop4_1:       {7, 1},
	BetHop5_1:       {4, 1},
	BetHop6_1:       {9, 1},
	BetHop8_1:       {9, 1},
	BetHop9_1:       {4, 1},
	BetHop10_1:      {7, 1},
	BetHop11_1:      {15, 1},
	BetHop12_1:      {30, 1},
	BetPassOdds:     {1, 1}, // true odds resolved by point via trueOddsRatio
	BetDontPassOdds: {1, 1},
	BetComeOdds:     {1, 1},
	BetDontComeOdds: {1, 1},
	BetFireBet:      {24, 1}, // 3-point tier; 4 and 5+ point tiers resolved explicitly
	BetBigRed:       {4, 1},
	BetAllSmall:     {30, 1},
	BetAllTall:      {30, 1},
	BetAllOrNothing: {175, 1},
	BetRepeater2:    {40, 1},
	BetRepeater3:    {50, 1},
	BetRepeater4:    {65, 1},
	BetRepeater5:    {80, 1},
	BetRepeater6:    {90, 1},
	BetRepeater8:    {90, 1},
	BetRepeater9:    {80, 1},
	BetRepeater10:   {65, 1},
	BetRepeater11:   {50, 1},
	BetRepeater12:   {40, 1},
}

// PayoutRatio returns the standard ratio for bt.
func PayoutRatio(bt BetType) Ratio {
	return payoutTable[bt]
}

// trueOddsRatio returns the odds-bet payout ratio for a Pass/Come odds bet
// carried at point p (true odds, no house edge).
func trueOddsRatio(point uint8) Ratio {
	switch point {
	case 4, 10:
		return Ratio{2, 1}
	case 5, 9:
		return Ratio{3, 2}
	case 6, 8:
		return Ratio{6, 5}
	default:
		return Ratio{1, 1}
	}
}

// repeaterSpec pairs a Repeater bet's target total with how many times it
// must appear before a seven-out to pay off.
type repeaterSpec struct {
	number uint8
	target int
}

var repeaterSpecs = map[BetType]repeaterSpec{
	BetRepeater2:  {2, 6},
	BetRepeater3:  {3, 7},
	BetRepeater4:  {4, 8},
	BetRepeater5:  {5, 9},
	BetRepeater6:  {6, 10},
	BetRepeater8:  {8, 10},
	BetRepeater9:  {9, 9},
	BetRepeater10: {10, 8},
	BetRepeater11: {11, 7},
	BetRepeater12: {12, 6},
}

var hopTargets = map[BetType]int{
	BetHop2_1:  2,
	BetHop3_1:  3,
	BetHop4_1:  4,
	BetHop5_1:  5,
	BetHop6_1:  6,
	BetHop8_1:  8,
	BetHop9_1:  9,
	BetHop10_1: 10,
	BetHop11_1: 11,
	BetHop12_1: 12,
}

var hardTargets = map[BetType]uint8{
	BetHard4:  4,
	BetHard6:  6,
	BetHard8:  8,
	BetHard10: 10,
}

// BetOutcome is the result of evaluating one bet against a single roll.
type BetOutcome uint8

const (
	// Carry means the bet is still live and stays on the table.
	Carry BetOutcome = iota
	// Won means the bet paid; payout includes the returned stake.
	Won
	// Lost means the stake (already debited at placement) is forfeit.
	Lost
	// Push means the bet is taken down with its stake returned but no
	// win or loss (e.g. a Don't Pass bet barred by a come-out 12).
	Push
)

// settleOne evaluates a single bet against the roll just made. phase and
// point are the table's come-out/point state immediately before this
// roll; hist is the current shooter's multi-roll history, already
// updated to include this roll (see GameState.settleBets). The returned
// *Bet, when non-nil, replaces b in the player's open bets (used by Come
// and Don't Come bets establishing their own point).
func settleOne(b Bet, d1, d2 uint8, phase Phase, point uint8, hist shooterHistory) (*Bet, int64, BetOutcome) {
	total := int(d1) + int(d2)
	stake := int64(b.Amount)

	switch b.Type {
	case BetPassLine:
		return lineBet(b, total, phase, point, false)
	case BetDontPass:
		return lineBet(b, total, phase, point, true)
	case BetCome:
		return comeBet(b, total, false)
	case BetDontCome:
		return comeBet(b, total, true)

	case BetField:
		switch total {
		case 2:
			return nil, stake + stake*2, Won
		case 12:
			return nil, stake + stake*3, Won
		case 3, 4, 9, 10, 11:
			return nil, stake + stake, Won
		default:
			return nil, 0, Lost
		}

	case BetPlace4, BetPlace5, BetPlace6, BetPlace8, BetPlace9, BetPlace10,
		BetBuy4, BetBuy5, BetBuy6, BetBuy8, BetBuy9, BetBuy10:
		if total == int(b.Point) {
			r := PayoutRatio(b.Type)
			return nil, stake + stake*int64(r.Num)/int64(r.Den), Won
		}
		if total == 7 {
			return nil, 0, Lost
		}
		return &b, 0, Carry

	case BetLay4, BetLay5, BetLay6, BetLay8, BetLay9, BetLay10:
		if total == 7 {
			r := PayoutRatio(b.Type)
			return nil, stake + stake*int64(r.Num)/int64(r.Den), Won
		}
		if total == int(b.Point) {
			return nil, 0, Lost
		}
		return &b, 0, Carry

	case BetPassOdds, BetComeOdds:
		r := trueOddsRatio(b.Point)
		if total == int(b.Point) {
			return nil, stake + stake*int64(r.Num)/int64(r.Den), Won
		}
		if total == 7 {
			return nil, 0, Lost
		}
		return &b, 0, Carry

	case BetDontPassOdds, BetDontComeOdds:
		r := trueOddsRatio(b.Point)
		if total == 7 {
			return nil, stake + stake*int64(r.Den)/int64(r.Num), Won
		}
		if total == int(b.Point) {
			return nil, 0, Lost
		}
		return &b, 0, Carry

	case BetHard4, BetHard6, BetHard8, BetHard10:
		target := hardTargets[b.Type]
		if total == 7 {
			return nil, 0, Lost
		}
		if total == int(target) {
			if d1 == d2 {
				r := PayoutRatio(b.Type)
				return nil, stake + stake*int64(r.Num)/int64(r.Den), Won
			}
			return nil, 0, Lost // made the easy way: hardway loses
		}
		return &b, 0, Carry

	case BetAny7:
		if total == 7 {
			r := PayoutRatio(b.Type)
			return nil, stake + stake*int64(r.Num)/int64(r.Den), Won
		}
		return nil, 0, Lost

	case BetAnyCraps:
		if total == 2 || total == 3 || total == 12 {
			r := PayoutRatio(b.Type)
			return nil, stake + stake*int64(r.Num)/int64(r.Den), Won
		}
		return nil, 0, Lost

	case BetBigRed:
		if total == 7 {
			r := PayoutRatio(b.Type)
			return nil, stake + stake*int64(r.Num)/int64(r.Den), Won
		}
		return nil, 0, Lost

	case BetC2:
		return oneRollOnTotal(b, total, 2)
	case BetC3:
		return oneRollOnTotal(b, total, 3)
	case BetC11:
		return oneRollOnTotal(b, total, 11)
	case BetC12:
		return oneRollOnTotal(b, total, 12)

	case BetHop2_1, BetHop3_1, BetHop4_1, BetHop5_1, BetHop6_1, BetHop8_1,
		BetHop9_1, BetHop10_1, BetHop11_1, BetHop12_1:
		return oneRollOnTotal(b, total, hopTargets[b.Type])

	case BetHorn:
		return hornBet(b, total, false)
	case BetHornHigh:
		return hornBet(b, total, true)
	case BetWorld:
		return worldBet(b, total)

	case BetFireBet:
		if total != 7 {
			return &b, 0, Carry
		}
		made := len(hist.pointsMade)
		switch {
		case made >= 5:
			return nil, stake + stake*999, Won
		case made == 4:
			return nil, stake + stake*249, Won
		case made == 3:
			return nil, stake + stake*24, Won
		default:
			return nil, 0, Lost
		}

	case BetAllSmall:
		if total != 7 {
			return &b, 0, Carry
		}
		if hist.allSmallHit() {
			r := PayoutRatio(b.Type)
			return nil, stake + stake*int64(r.Num)/int64(r.Den), Won
		}
		return nil, 0, Lost

	case BetAllTall:
		if total != 7 {
			return &b, 0, Carry
		}
		if hist.allTallHit() {
			r := PayoutRatio(b.Type)
			return nil, stake + stake*int64(r.Num)/int64(r.Den), Won
		}
		return nil, 0, Lost

	case BetAllOrNothing:
		if total != 7 {
			return &b, 0, Carry
		}
		if hist.allSmallHit() && hist.allTallHit() {
			r := PayoutRatio(b.Type)
			return nil, stake + stake*int64(r.Num)/int64(r.Den), Won
		}
		return nil, 0, Lost

	case BetRepeater2, BetRepeater3, BetRepeater4, BetRepeater5, BetRepeater6,
		BetRepeater8, BetRepeater9, BetRepeater10, BetRepeater11, BetRepeater12:
		spec := repeaterSpecs[b.Type]
		if hist.rolled[spec.number] >= spec.target {
			r := PayoutRatio(b.Type)
			return nil, stake + stake*int64(r.Num)/int64(r.Den), Won
		}
		if total == 7 {
			return nil, 0, Lost
		}
		return &b, 0, Carry

	default:
		return nil, 0, Lost
	}
}

// lineBet resolves Pass Line (isDont=false) and Don't Pass (isDont=true)
// bets against the table's come-out/point state before this roll.
func lineBet(b Bet, total int, phase Phase, point uint8, isDont bool) (*Bet, int64, BetOutcome) {
	stake := int64(b.Amount)
	if phase == PhaseComeOut {
		switch total {
		case 7, 11:
			if isDont {
				return nil, 0, Lost
			}
			return nil, stake * 2, Won
		case 2, 3:
			if isDont {
				return nil, stake * 2, Won
			}
			return nil, 0, Lost
		case 12:
			if isDont {
				return nil, stake, Push // barred: stake returned, no action
			}
			return nil, 0, Lost
		default:
			return &b, 0, Carry
		}
	}
	switch {
	case total == int(point):
		if isDont {
			return nil, 0, Lost
		}
		return nil, stake * 2, Won
	case total == 7:
		if isDont {
			return nil, stake * 2, Won
		}
		return nil, 0, Lost
	default:
		return &b, 0, Carry
	}
}

// comeBet resolves Come (isDont=false) and Don't Come (isDont=true) bets.
// b.Point is zero until the bet establishes its own point on its first
// roll, independent of the table's Pass Line point.
func comeBet(b Bet, total int, isDont bool) (*Bet, int64, BetOutcome) {
	stake := int64(b.Amount)
	if b.Point == 0 {
		switch total {
		case 7, 11:
			if isDont {
				return nil, 0, Lost
			}
			return nil, stake * 2, Won
		case 2, 3:
			if isDont {
				return nil, stake * 2, Won
			}
			return nil, 0, Lost
		case 12:
			if isDont {
				return nil, stake, Push
			}
			return nil, 0, Lost
		default:
			established := b
			established.Point = uint8(total)
			return &established, 0, Carry
		}
	}
	switch {
	case total == int(b.Point):
		if isDont {
			return nil, 0, Lost
		}
		return nil, stake * 2, Won
	case total == 7:
		if isDont {
			return nil, stake * 2, Won
		}
		return nil, 0, Lost
	default:
		return &b, 0, Carry
	}
}

func oneRollOnTotal(b Bet, total, target int) (*Bet, int64, BetOutcome) {
	if total != target {
		return nil, 0, Lost
	}
	r := PayoutRatio(b.Type)
	stake := int64(b.Amount)
	return nil, stake + stake*int64(r.Num)/int64(r.Den), Won
}

// hornBet splits the stake across 2, 3, 11 and 12 (four equal parts, or
// five with 12 doubled for Horn High). Only the part riding the number
// rolled pays; the rest of the stake is forfeit.
func hornBet(b Bet, total int, high bool) (*Bet, int64, BetOutcome) {
	parts := int64(4)
	if high {
		parts = 5
	}
	part := int64(b.Amount) / parts
	switch total {
	case 2, 12:
		weight := int64(1)
		if high && total == 12 {
			weight = 2
		}
		won := part * weight
		return nil, won + won*30, Won
	case 3, 11:
		return nil, part + part*15, Won
	default:
		return nil, 0, Lost
	}
}

// worldBet (Whirl) splits the stake five ways across 2, 3, 7, 11 and 12.
func worldBet(b Bet, total int) (*Bet, int64, BetOutcome) {
	part := int64(b.Amount) / 5
	switch total {
	case 7:
		return nil, part + part*4, Won
	case 2, 12:
		return nil, part + part*30, Won
	case 3, 11:
		return nil, part + part*15, Won
	default:
		return nil, 0, Lost
	}
}
