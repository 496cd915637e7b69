package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/shannon/internal/domain"
	"github.com/phrazzld/shannon/internal/gmail"
	"github.com/phrazzld/shannon/internal/store"
	"github.com/phrazzld/shannon/internal/task"
)

// Limits of the message listing diagnostic
const (
	DefaultMessageListSize = 10
	MaxMessageListSize     = 100
)

// TaskSubmitter submits background jobs.
type TaskSubmitter interface {
	Submit(ctx context.Context, job task.Job) (uuid.UUID, error)
}

// TaskStatusReader reports task snapshots.
type TaskStatusReader interface {
	Status(ctx context.Context, id uuid.UUID) (task.Task, error)
	Wait(ctx context.Context, id uuid.UUID) (task.Task, error)
}

// SyncJobFactory builds validated Gmail sync jobs.
type SyncJobFactory interface {
	New(params task.GmailSyncParams) (*task.GmailSyncJob, error)
}

// MemoryService provides the operations of the message API.
type MemoryService interface {
	// StartGmailSync validates params and submits a sync task. It returns
	// as soon as the task is queued.
	StartGmailSync(ctx context.Context, params task.GmailSyncParams) (uuid.UUID, error)

	// TaskStatus returns the current snapshot of a task.
	TaskStatus(ctx context.Context, id uuid.UUID) (task.Task, error)

	// WaitForTask blocks until the task is terminal or ctx is done.
	WaitForTask(ctx context.Context, id uuid.UUID) (task.Task, error)

	// WorkspaceStats summarises the stored memories.
	WorkspaceStats(ctx context.Context) (*domain.WorkspaceStats, error)

	// CheckGmailAuth verifies accessToken by loading the mailbox profile.
	CheckGmailAuth(ctx context.Context, accessToken string) (*gmail.Profile, error)

	// GmailLabels lists the labels of the mailbox.
	GmailLabels(ctx context.Context, accessToken string) ([]gmail.Label, error)

	// GmailMessages returns the metadata of the newest matching messages.
	GmailMessages(ctx context.Context, accessToken string, opts gmail.ListOptions) ([]domain.Email, error)
}

// memoryServiceImpl implements the MemoryService interface
type memoryServiceImpl struct {
	tasks     TaskSubmitter
	status    TaskStatusReader
	syncJobs  SyncJobFactory
	memories  store.MemoryStore
	connector gmail.Connector
	logger    *slog.Logger
}

// Ensure memoryServiceImpl implements MemoryService
var _ MemoryService = (*memoryServiceImpl)(nil)

// MemoryServiceDeps are the collaborators of the memory service.
type MemoryServiceDeps struct {
	Tasks     TaskSubmitter
	Status    TaskStatusReader
	SyncJobs  SyncJobFactory
	Memories  store.MemoryStore
	Connector gmail.Connector
	Logger    *slog.Logger
}

// NewMemoryService creates a MemoryService.
// It returns an error if any of the required dependencies are nil.
func NewMemoryService(deps MemoryServiceDeps) (MemoryService, error) {
	switch {
	case deps.Tasks == nil:
		return nil, &ServiceError{Operation: "create_service", Message: "task submitter cannot be nil"}
	case deps.Status == nil:
		return nil, &ServiceError{Operation: "create_service", Message: "status reader cannot be nil"}
	case deps.SyncJobs == nil:
		return nil, &ServiceError{Operation: "create_service", Message: "sync job factory cannot be nil"}
	case deps.Memories == nil:
		return nil, &ServiceError{Operation: "create_service", Message: "memory store cannot be nil"}
	case deps.Connector == nil:
		return nil, &ServiceError{Operation: "create_service", Message: "gmail connector cannot be nil"}
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &memoryServiceImpl{
		tasks:     deps.Tasks,
		status:    deps.Status,
		syncJobs:  deps.SyncJobs,
		memories:  deps.Memories,
		connector: deps.Connector,
		logger:    logger.With("component", "memory_service"),
	}, nil
}

// StartGmailSync implements MemoryService.
func (s *memoryServiceImpl) StartGmailSync(ctx context.Context, params task.GmailSyncParams) (uuid.UUID, error) {
	job, err := s.syncJobs.New(params)
	if err != nil {
		s.logger.Debug("rejected gmail sync request", "error", err)
		return uuid.Nil, NewServiceError("start_gmail_sync", "invalid sync parameters", err)
	}

	id, err := s.tasks.Submit(ctx, job)
	if err != nil {
		s.logger.Error("failed to submit gmail sync", "error", err)
		return uuid.Nil, NewServiceError("start_gmail_sync", "failed to submit sync task", err)
	}

	s.logger.Info("gmail sync submitted",
		"task_id", id,
		"max_messages", params.MaxMessages,
		"has_query", params.Query != "")

	return id, nil
}

// TaskStatus implements MemoryService.
func (s *memoryServiceImpl) TaskStatus(ctx context.Context, id uuid.UUID) (task.Task, error) {
	t, err := s.status.Status(ctx, id)
	if err != nil {
		return task.Task{}, NewServiceError("get_task_status", "failed to load task", err)
	}
	return t, nil
}

// WaitForTask implements MemoryService. On ctx expiry the latest snapshot
// is returned together with the context error.
func (s *memoryServiceImpl) WaitForTask(ctx context.Context, id uuid.UUID) (task.Task, error) {
	t, err := s.status.Wait(ctx, id)
	if err != nil && ctx.Err() != nil && t.ID != uuid.Nil {
		return t, ctx.Err()
	}
	if err != nil {
		return task.Task{}, NewServiceError("wait_for_task", "failed to wait for task", err)
	}
	return t, nil
}

// WorkspaceStats implements MemoryService.
func (s *memoryServiceImpl) WorkspaceStats(ctx context.Context) (*domain.WorkspaceStats, error) {
	stats, err := s.memories.Stats(ctx)
	if err != nil {
		s.logger.Error("failed to load workspace stats", "error", err)
		return nil, NewServiceError("get_workspace_stats", "failed to load memory statistics", err)
	}
	return stats, nil
}

// CheckGmailAuth implements MemoryService.
func (s *memoryServiceImpl) CheckGmailAuth(ctx context.Context, accessToken string) (*gmail.Profile, error) {
	client, err := s.connect(ctx, "check_gmail_auth", accessToken)
	if err != nil {
		return nil, err
	}

	profile, err := client.GetProfile(ctx)
	if err != nil {
		return nil, NewServiceError("check_gmail_auth", "failed to load gmail profile", err)
	}
	return profile, nil
}

// GmailLabels implements MemoryService.
func (s *memoryServiceImpl) GmailLabels(ctx context.Context, accessToken string) ([]gmail.Label, error) {
	client, err := s.connect(ctx, "get_gmail_labels", accessToken)
	if err != nil {
		return nil, err
	}

	labels, err := client.ListLabels(ctx)
	if err != nil {
		return nil, NewServiceError("get_gmail_labels", "failed to list gmail labels", err)
	}
	return labels, nil
}

// GmailMessages implements MemoryService. MaxResults defaults to
// DefaultMessageListSize and may not exceed MaxMessageListSize.
func (s *memoryServiceImpl) GmailMessages(ctx context.Context, accessToken string, opts gmail.ListOptions) ([]domain.Email, error) {
	switch {
	case opts.MaxResults == 0:
		opts.MaxResults = DefaultMessageListSize
	case opts.MaxResults < 0 || opts.MaxResults > MaxMessageListSize:
		return nil, NewServiceError("get_gmail_messages", "invalid page size", ErrInvalidRequest)
	}

	client, err := s.connect(ctx, "get_gmail_messages", accessToken)
	if err != nil {
		return nil, err
	}

	ids, err := client.ListMessageIDs(ctx, opts)
	if err != nil {
		return nil, NewServiceError("get_gmail_messages", "failed to list gmail messages", err)
	}
	if len(ids) == 0 {
		return []domain.Email{}, nil
	}

	emails, err := client.FetchMessages(ctx, ids, nil)
	if err != nil {
		return nil, NewServiceError("get_gmail_messages", "failed to fetch gmail messages", err)
	}
	return emails, nil
}

func (s *memoryServiceImpl) connect(ctx context.Context, operation, accessToken string) (gmail.Client, error) {
	if accessToken == "" {
		return nil, NewServiceError(operation, "access token is required", ErrInvalidRequest)
	}

	client, err := s.connector.Connect(ctx, accessToken)
	if err != nil {
		return nil, NewServiceError(operation, "failed to connect to gmail", err)
	}
	return client, nil
}
