package task

import (
	"context"
)

// MockJob is a simple implementation of the Job interface for testing
type MockJob struct {
	JobType   string
	ExecuteFn func(ctx context.Context, reporter Reporter) (interface{}, error)
}

// NewMockJob creates a MockJob that completes immediately with result.
func NewMockJob(result interface{}) *MockJob {
	return &MockJob{
		JobType: "mock_job",
		ExecuteFn: func(ctx context.Context, reporter Reporter) (interface{}, error) {
			return result, nil
		},
	}
}

// Type returns the task type identifier
func (j *MockJob) Type() string {
	return j.JobType
}

// Execute runs the job logic
func (j *MockJob) Execute(ctx context.Context, reporter Reporter) (interface{}, error) {
	return j.ExecuteFn(ctx, reporter)
}
