// Package client is a Go client for the Shannon HTTP API. It speaks the
// same message envelope the browser extension uses and implements
// task.StatusQuerier, so a task.Poller can follow a sync from another
// process.
package client
