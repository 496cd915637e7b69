// Package store defines the persistence contract for memories and the
// helpers shared by its SQL implementations. Implementations live under
// internal/platform.
package store
