// Package task manages background job submission, execution, and status
// tracking. Long-running operations such as a Gmail memory sync are submitted
// to a TaskRunner, which returns a task ID immediately and executes the job on
// a worker goroutine. Callers observe progress through the StatusService,
// either by polling or by waiting for the terminal state.
package task
