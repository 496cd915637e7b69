// Package service contains the application use cases behind the message
// API. It turns validated requests into background tasks, answers task and
// memory queries, and runs the interactive Gmail diagnostics.
//
// Services receive their collaborators through constructor injection and
// depend only on interfaces from internal/task, internal/gmail and
// internal/store, never on a concrete backend.
package service
