// Package domain defines the core entities of the memory service: synced
// emails, the three memory tiers derived from them, and workspace statistics.
package domain
