// Package api serves the message protocol spoken by the browser extension.
//
// Every request to POST /api/messages carries a {type, payload} envelope;
// MessageHandler decodes and validates the payload for that type and
// answers with a {success, ...} body. A few REST aliases expose the same
// operations for scripts and the shannonctl CLI. Errors from the service
// layer are mapped to status codes and client-safe messages in errors.go.
package api
