package payment

// Balance is one participant's open position: the outstanding amount and
// what has already been paid toward it, both in cents.
type Balance struct {
	OutstandingCents int64
	PaidCents        int64
}

// Slack returns the still-open cents of the balance.
func (b Balance) Slack() int64 {
	return b.OutstandingCents - b.PaidCents
}

// Distribute allocates totalCents across the participants' open balances
// and returns one allocation per participant, in input order.
//
// When the payment covers every open balance, each participant receives
// exactly its slack and any surplus goes to participant 0 - overpayment is
// always attributed to the first participant. Otherwise the payment is
// split in successive rounds: each round divides the remaining amount
// evenly over the still-open participants, capping each share at the
// participant's remaining slack; participants whose allocation reaches
// their slack drop out of the next round's divisor. A final remainder too
// small to split evenly goes to participant 0, capped at its remaining
// slack; whatever it cannot absorb spills to the next open participants in
// order.
//
// Invariants, for totalCents <= total slack: the allocations sum to
// totalCents exactly, and no allocation exceeds its participant's slack.
func Distribute(totalCents int64, balances []Balance) []int64 {
	allocation := make([]int64, len(balances))
	if len(balances) == 0 {
		return allocation
	}

	slack := make([]int64, len(balances))
	var totalSlack int64
	for i, b := range balances {
		slack[i] = b.Slack()
		totalSlack += slack[i]
	}

	// Full coverage: everyone is made whole, participant 0 absorbs the
	// surplus.
	if totalCents >= totalSlack {
		copy(allocation, slack)
		allocation[0] += totalCents - totalSlack
		return allocation
	}

	open := 0
	for _, s := range slack {
		if s > 0 {
			open++
		}
	}

	remaining := totalCents
	for remaining > int64(open) && open > 0 {
		perEntry := remaining / int64(open)
		for i := range balances {
			room := slack[i] - allocation[i]
			if room <= 0 {
				continue
			}
			take := min(perEntry, room)
			allocation[i] += take
			remaining -= take
			if allocation[i] == slack[i] {
				open--
			}
		}
	}

	// Too small for an even split - favor participant 0, but never past a
	// participant's slack.
	for i := range balances {
		if remaining == 0 {
			break
		}
		room := slack[i] - allocation[i]
		if room <= 0 {
			continue
		}
		take := min(remaining, room)
		allocation[i] += take
		remaining -= take
	}
	return allocation
}
