// Package events provides types and interfaces for an event-driven architecture.
//
// Components publish lifecycle notifications (task created, running, completed,
// failed) without knowing which handlers consume them. Metrics collection and
// any push-based notification channel register as handlers.
//
// The primary components are:
// - Event: a typed notification with a JSON payload
// - EventHandler: interface for components that can handle events
// - EventEmitter: interface for components that can emit events
package events
