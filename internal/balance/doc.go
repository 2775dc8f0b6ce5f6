// Package balance implements withdrawable balance accounting.
//
// Owners earn balances from settled sessions, subscription purchases, and
// registration rewards. Balances live alongside the treasury counters
// (registration reward, reward pool, lifetime deposit and withdrawal
// totals) that anchor the conservation invariant:
//
//	sum(balances) + reward_pool + escrow(active sessions)
//	    == deposits_total - withdrawals_total
//
// Withdrawals follow checks-effects-interactions: the balance is zeroed
// and the withdrawal recorded before the outbound payout is attempted,
// all inside one transaction. A rejected payout rolls the whole unit
// back, restoring the balance.
package balance
