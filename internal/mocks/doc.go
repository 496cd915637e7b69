// Package mocks provides hand-written test doubles for the service's
// collaborator interfaces.
//
// Each mock exposes one function field per interface method. A nil field
// falls back to a harmless default so tests only set what they exercise:
//
//	client := &mocks.MockGmailClient{
//	    ListMessageIDsFn: func(ctx context.Context, opts gmail.ListOptions) ([]string, error) {
//	        return []string{"m1", "m2"}, nil
//	    },
//	}
//
// Mocks record their calls behind a mutex, so they can be shared with the
// worker goroutines of a task runner.
package mocks
