// Package physical turns a logical operator tree into a set of physical
// candidate trees. Each candidate resolves every strategy choice the
// logical plan left open: join order, join algorithm, scan access path,
// aggregate placement, and the time-intelligence execution strategy.
//
// Generation is exhaustive for small plans and greedy for large join
// lists. Candidates carry no costs; the cost package estimates each one
// and picks the cheapest.
package physical
