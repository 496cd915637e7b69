// Package gmail reads a user's mailbox through the Gmail REST API.
//
// Connections are short lived: a Connector turns the OAuth access token the
// browser extension sends with every sync request into a Client. Message
// metadata is cached across connections in a bounded LRU cache because the
// same messages are requested again on every incremental sync.
package gmail
