package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/shannon/internal/domain"
	"github.com/phrazzld/shannon/internal/gmail"
	"github.com/phrazzld/shannon/internal/mocks"
	"github.com/phrazzld/shannon/internal/platform/memstore"
	"github.com/phrazzld/shannon/internal/platform/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingReporter captures every progress report
type recordingReporter struct {
	mu     sync.Mutex
	values []int
}

func (r *recordingReporter) Progress(percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, percent)
}

func (r *recordingReporter) Values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.values...)
}

func makeEmails(n int) []domain.Email {
	emails := make([]domain.Email, n)
	for i := range emails {
		emails[i] = domain.Email{
			ID:         fmt.Sprintf("m%d", i+1),
			ThreadID:   fmt.Sprintf("t%d", i+1),
			From:       "Ada Lovelace <ada@example.com>",
			Subject:    fmt.Sprintf("Subject %d", i+1),
			Snippet:    "notes on the analytical engine",
			ReceivedAt: time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC),
		}
	}
	return emails
}

// fixedClassification returns a classifier producing the given number of
// memories per tier for every batch
func fixedClassification(episodes, facts, patterns int) func(ctx context.Context, emails []domain.Email) (*domain.Classification, error) {
	return func(ctx context.Context, emails []domain.Email) (*domain.Classification, error) {
		c := &domain.Classification{}
		for i := 0; i < episodes; i++ {
			c.Episodes = append(c.Episodes, &domain.Episode{
				EmailID: emails[i%len(emails)].ID,
				Subject: emails[i%len(emails)].Subject,
				Summary: fmt.Sprintf("episode %d", i),
			})
		}
		for i := 0; i < facts; i++ {
			c.Facts = append(c.Facts, &domain.Fact{
				Subject:    "ada@example.com",
				Predicate:  "mentions",
				Object:     fmt.Sprintf("topic %d", i),
				Confidence: 0.5,
			})
		}
		for i := 0; i < patterns; i++ {
			c.Patterns = append(c.Patterns, &domain.Pattern{
				Trigger:   fmt.Sprintf("trigger %d", i),
				Action:    "reply",
				Frequency: 1,
			})
		}
		return c, nil
	}
}

type syncFixture struct {
	client     *mocks.MockGmailClient
	connector  *mocks.MockConnector
	classifier *mocks.MockClassifier
	store      *memstore.MemoryStore
	factory    *GmailSyncJobFactory
}

func newSyncFixture(t *testing.T, emails []domain.Email, batchSize int) *syncFixture {
	t.Helper()

	client := mocks.NewMockGmailClientWithEmails(emails)
	f := &syncFixture{
		client:     client,
		connector:  &mocks.MockConnector{Client: client},
		classifier: &mocks.MockClassifier{ClassifyFn: fixedClassification(1, 1, 1)},
		store:      memstore.New(),
	}
	f.factory = NewGmailSyncJobFactory(GmailSyncDeps{
		Connector:  f.connector,
		Classifier: f.classifier,
		Store:      f.store,
		Tokens:     tokens.Estimator,
		BatchSize:  batchSize,
		Logger:     setupTestLogger(),
	})
	return f
}

func (f *syncFixture) newJob(t *testing.T, params GmailSyncParams) *GmailSyncJob {
	t.Helper()
	job, err := f.factory.New(params)
	require.NoError(t, err)
	return job
}

func TestGmailSyncJobFactory_New(t *testing.T) {
	t.Parallel()

	factory := NewGmailSyncJobFactory(GmailSyncDeps{
		Connector:  &mocks.MockConnector{},
		Classifier: &mocks.MockClassifier{},
		Store:      &mocks.MockMemoryStore{},
	})

	tests := []struct {
		name    string
		params  GmailSyncParams
		wantErr bool
	}{
		{name: "defaults", params: GmailSyncParams{AccessToken: "tok"}},
		{name: "upper bound", params: GmailSyncParams{AccessToken: "tok", MaxMessages: MaxSyncMaxMessages}},
		{name: "labels", params: GmailSyncParams{AccessToken: "tok", LabelIDs: []string{"INBOX"}}},
		{name: "missing token", params: GmailSyncParams{MaxMessages: 10}, wantErr: true},
		{name: "too many messages", params: GmailSyncParams{AccessToken: "tok", MaxMessages: 501}, wantErr: true},
		{name: "negative max", params: GmailSyncParams{AccessToken: "tok", MaxMessages: -1}, wantErr: true},
		{name: "empty label", params: GmailSyncParams{AccessToken: "tok", LabelIDs: []string{""}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job, err := factory.New(tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSyncParams)
				assert.Nil(t, job)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TypeGmailSync, job.Type())
			if tt.params.MaxMessages == 0 {
				assert.Equal(t, DefaultSyncMaxMessages, job.params.MaxMessages)
			}
		})
	}
}

func TestGmailSyncJob_Execute(t *testing.T) {
	t.Parallel()

	t.Run("reports checkpoints and counts", func(t *testing.T) {
		t.Parallel()

		f := newSyncFixture(t, makeEmails(10), 10)
		f.classifier.ClassifyFn = fixedClassification(20, 25, 20)

		reporter := &recordingReporter{}
		res, err := f.newJob(t, GmailSyncParams{AccessToken: "tok", MaxMessages: 10, Query: "newer_than:7d"}).
			Execute(context.Background(), reporter)
		require.NoError(t, err)

		assert.Equal(t, GmailSyncResult{
			EpisodicCount:   20,
			SemanticCount:   25,
			ProceduralCount: 20,
			EmailsProcessed: 10,
		}, res)

		values := reporter.Values()
		assert.IsNonDecreasing(t, values)
		for _, checkpoint := range []int{progressConnected, progressListed, progressFetched, progressClassified, progressStored} {
			assert.Contains(t, values, checkpoint)
		}

		require.Len(t, f.client.ListCalls(), 1)
		assert.Equal(t, gmail.ListOptions{MaxResults: 10, Query: "newer_than:7d"}, f.client.ListCalls()[0])
		assert.Equal(t, []string{"tok"}, f.connector.Tokens())

		stats, err := f.store.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 10, stats.GmailIntegration.TotalEmailsProcessed)
		assert.Equal(t, res.(GmailSyncResult).EpisodicCount, stats.Episodic.Episodes)
		assert.Equal(t, 25, stats.Semantic.Facts)
		assert.Positive(t, stats.TotalTokens)
	})

	t.Run("classifies in batches", func(t *testing.T) {
		t.Parallel()

		f := newSyncFixture(t, makeEmails(10), 3)

		res, err := f.newJob(t, GmailSyncParams{AccessToken: "tok", MaxMessages: 10}).
			Execute(context.Background(), &recordingReporter{})
		require.NoError(t, err)

		batches := f.classifier.Batches()
		require.Len(t, batches, 4)
		assert.Len(t, batches[0], 3)
		assert.Len(t, batches[3], 1)
		assert.Equal(t, "m10", batches[3][0].ID)

		result := res.(GmailSyncResult)
		assert.Equal(t, 4, result.EpisodicCount)
		assert.Equal(t, 10, result.EmailsProcessed)
	})

	t.Run("counts tokens before saving", func(t *testing.T) {
		t.Parallel()

		f := newSyncFixture(t, makeEmails(2), 10)
		var saved *domain.Classification
		f.factory.deps.Store = &mocks.MockMemoryStore{
			SaveClassificationFn: func(ctx context.Context, emailIDs []string, c *domain.Classification) error {
				saved = c
				return nil
			},
		}

		_, err := f.newJob(t, GmailSyncParams{AccessToken: "tok"}).Execute(context.Background(), &recordingReporter{})
		require.NoError(t, err)

		require.NotNil(t, saved)
		require.Len(t, saved.Episodes, 1)
		assert.Positive(t, saved.Episodes[0].TokenCount)
		assert.Positive(t, saved.Facts[0].TokenCount)
		assert.Positive(t, saved.Patterns[0].TokenCount)
		assert.NotZero(t, saved.Episodes[0].ID)
		assert.False(t, saved.Episodes[0].CreatedAt.IsZero())
	})

	t.Run("empty mailbox", func(t *testing.T) {
		t.Parallel()

		f := newSyncFixture(t, nil, 10)
		reporter := &recordingReporter{}

		res, err := f.newJob(t, GmailSyncParams{AccessToken: "tok"}).Execute(context.Background(), reporter)
		require.NoError(t, err)

		assert.Equal(t, GmailSyncResult{}, res)
		assert.Equal(t, 0, f.classifier.Calls())
		assert.Equal(t, []int{progressConnected, progressListed}, reporter.Values())
	})

	t.Run("skips processed messages", func(t *testing.T) {
		t.Parallel()

		f := newSyncFixture(t, makeEmails(10), 10)
		require.NoError(t, f.store.SaveClassification(context.Background(), []string{"m1", "m2"}, &domain.Classification{}))

		res, err := f.newJob(t, GmailSyncParams{AccessToken: "tok"}).Execute(context.Background(), &recordingReporter{})
		require.NoError(t, err)

		result := res.(GmailSyncResult)
		assert.Equal(t, 8, result.EmailsProcessed)
		assert.Equal(t, 2, result.EmailsSkipped)

		fetched := f.client.FetchedIDs()
		require.Len(t, fetched, 1)
		assert.NotContains(t, fetched[0], "m1")
		assert.NotContains(t, fetched[0], "m2")
		assert.Len(t, fetched[0], 8)
	})

	t.Run("everything already processed", func(t *testing.T) {
		t.Parallel()

		f := newSyncFixture(t, makeEmails(2), 10)
		require.NoError(t, f.store.SaveClassification(context.Background(), []string{"m1", "m2"}, &domain.Classification{}))

		res, err := f.newJob(t, GmailSyncParams{AccessToken: "tok"}).Execute(context.Background(), &recordingReporter{})
		require.NoError(t, err)

		assert.Equal(t, GmailSyncResult{EmailsSkipped: 2}, res)
		assert.Empty(t, f.client.FetchedIDs())
	})
}

func TestGmailSyncJob_ExecuteErrors(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tests := []struct {
		name    string
		mutate  func(f *syncFixture)
		wantErr error
		wantMsg string
	}{
		{
			name: "connect",
			mutate: func(f *syncFixture) {
				f.connector.ConnectFn = func(ctx context.Context, accessToken string) (gmail.Client, error) {
					return nil, gmail.ErrUnauthorized
				}
			},
			wantErr: gmail.ErrUnauthorized,
			wantMsg: "failed to connect to gmail",
		},
		{
			name: "list",
			mutate: func(f *syncFixture) {
				f.client.ListMessageIDsFn = func(ctx context.Context, opts gmail.ListOptions) ([]string, error) {
					return nil, gmail.ErrRateLimited
				}
			},
			wantErr: gmail.ErrRateLimited,
			wantMsg: "failed to list messages",
		},
		{
			name: "fetch",
			mutate: func(f *syncFixture) {
				f.client.FetchMessagesFn = func(ctx context.Context, ids []string, progress gmail.ProgressFunc) ([]domain.Email, error) {
					return nil, errBoom
				}
			},
			wantErr: errBoom,
			wantMsg: "failed to fetch messages",
		},
		{
			name: "classify",
			mutate: func(f *syncFixture) {
				f.classifier.ClassifyFn = func(ctx context.Context, emails []domain.Email) (*domain.Classification, error) {
					return nil, errBoom
				}
			},
			wantErr: errBoom,
			wantMsg: "failed to classify messages",
		},
		{
			name: "invalid memories",
			mutate: func(f *syncFixture) {
				f.classifier.ClassifyFn = func(ctx context.Context, emails []domain.Email) (*domain.Classification, error) {
					return &domain.Classification{Patterns: []*domain.Pattern{{Trigger: "x", Action: "y"}}}, nil
				}
			},
			wantErr: domain.ErrInvalidFrequency,
			wantMsg: "classifier produced invalid memories",
		},
		{
			name: "store",
			mutate: func(f *syncFixture) {
				f.factory.deps.Store = &mocks.MockMemoryStore{
					SaveClassificationFn: func(ctx context.Context, emailIDs []string, c *domain.Classification) error {
						return errBoom
					},
				}
			},
			wantErr: errBoom,
			wantMsg: "failed to store memories",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newSyncFixture(t, makeEmails(3), 10)
			tt.mutate(f)

			res, err := f.newJob(t, GmailSyncParams{AccessToken: "tok"}).Execute(context.Background(), &recordingReporter{})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestGmailSyncJob_ThroughRunner(t *testing.T) {
	t.Parallel()

	t.Run("completes with counts and monotonic progress", func(t *testing.T) {
		t.Parallel()

		f := newSyncFixture(t, makeEmails(10), 10)
		f.classifier.ClassifyFn = func(ctx context.Context, emails []domain.Email) (*domain.Classification, error) {
			// Leave the poller time to observe a running snapshot
			time.Sleep(20 * time.Millisecond)
			return fixedClassification(20, 25, 20)(ctx, emails)
		}

		store := NewInMemoryTaskStore(0)
		runner := newTestRunner(t, store, nil)
		require.NoError(t, runner.Start())

		id, err := runner.Submit(context.Background(), f.newJob(t, GmailSyncParams{AccessToken: "tok", MaxMessages: 10}))
		require.NoError(t, err)

		var mu sync.Mutex
		var observed []int
		poller := NewPoller(NewStatusService(store), PollerConfig{
			Interval: time.Millisecond,
			OnUpdate: func(snapshot Task) {
				mu.Lock()
				observed = append(observed, snapshot.Progress)
				mu.Unlock()
			},
		})

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		final, err := poller.Poll(ctx, id)
		require.NoError(t, err)
		require.Equal(t, StatusCompleted, final.Status)
		assert.Equal(t, 100, final.Progress)

		var result GmailSyncResult
		require.NoError(t, final.DecodeResult(&result))
		assert.Equal(t, 20, result.EpisodicCount)
		assert.Equal(t, 25, result.SemanticCount)
		assert.Equal(t, 20, result.ProceduralCount)

		mu.Lock()
		defer mu.Unlock()
		assert.IsNonDecreasing(t, observed)
		assert.Equal(t, 100, observed[len(observed)-1])
	})

	t.Run("failure is visible on the first poll after it happened", func(t *testing.T) {
		t.Parallel()

		f := newSyncFixture(t, makeEmails(1), 10)
		f.connector.ConnectFn = func(ctx context.Context, accessToken string) (gmail.Client, error) {
			return nil, gmail.ErrUnauthorized
		}

		store := NewInMemoryTaskStore(0)
		runner := newTestRunner(t, store, nil)
		require.NoError(t, runner.Start())

		id, err := runner.Submit(context.Background(), f.newJob(t, GmailSyncParams{AccessToken: "expired"}))
		require.NoError(t, err)
		waitTerminal(t, store, id)

		polls := 0
		poller := NewPoller(NewStatusService(store), PollerConfig{
			Interval:    time.Millisecond,
			MaxAttempts: 1,
			OnUpdate:    func(Task) { polls++ },
		})

		final, err := poller.Poll(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 1, polls)
		assert.Equal(t, StatusFailed, final.Status)
		assert.NotEmpty(t, final.Error)
		assert.Contains(t, final.Error, "failed to connect to gmail")

		var jobErr *JobError
		assert.ErrorAs(t, final.Err(), &jobErr)
	})
}
