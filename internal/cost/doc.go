// Package cost estimates multi-objective costs for physical candidate
// trees and selects the cheapest. Estimation is bottom-up and pure: it
// reads statistics from the frozen graph and never caches across calls.
package cost
