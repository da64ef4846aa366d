// Package quota contains the usage quota bounded context: per-user
// generation counters keyed by billing period, and the ledger contract that
// reserves, commits and rolls back charges against plan limits.
package quota
