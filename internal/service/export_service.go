package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"task-tracker/internal/domain"
	"task-tracker/internal/repository"
	"task-tracker/internal/storage"
)

const remoteTimeout = 30 * time.Second

// ExportConfig locates task exports in object storage.
type ExportConfig struct {
	Bucket    string
	KeyPrefix string
	URLTTL    time.Duration
}

// Export describes an uploaded snapshot of an owner's tasks.
type Export struct {
	Key       string
	Location  string
	URL       string
	ExpiresAt time.Time
	TaskCount int
}

// ExportService snapshots an owner's tasks to object storage.
type ExportService interface {
	Export(ctx context.Context, owner domain.Identity) (*Export, error)
	ListExports(ctx context.Context, owner domain.Identity) ([]storage.ObjectInfo, error)
}

type exportService struct {
	tasks        repository.TaskRepository
	store        storage.Service
	cfg          ExportConfig
	queryTimeout time.Duration
	now          func() time.Time
}

// NewExportService returns a service that answers ErrExportDisabled when
// store is nil or no bucket is configured.
func NewExportService(tasks repository.TaskRepository, store storage.Service, cfg ExportConfig, queryTimeout time.Duration) ExportService {
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 15 * time.Minute
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &exportService{
		tasks:        tasks,
		store:        store,
		cfg:          cfg,
		queryTimeout: queryTimeout,
		now:          time.Now,
	}
}

type exportDocument struct {
	ExportedAt string       `json:"exportedAt"`
	Owner      string       `json:"owner"`
	Tasks      []exportTask `json:"tasks"`
}

type exportTask struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func (s *exportService) Export(ctx context.Context, owner domain.Identity) (*Export, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	if err := requireOwner(owner); err != nil {
		return nil, err
	}

	listCtx, cancel := withTimeout(ctx, s.queryTimeout)
	tasks, err := s.tasks.ListByOwner(listCtx, owner.Email)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list tasks for export: %w", err)
	}

	now := s.now().UTC()
	doc := exportDocument{
		ExportedAt: now.Format(time.RFC3339),
		Owner:      owner.Email,
		Tasks:      make([]exportTask, len(tasks)),
	}
	for i, t := range tasks {
		doc.Tasks[i] = exportTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			DueDate:     t.DueDate.Format(time.RFC3339),
			Category:    t.Category,
			Status:      t.Status,
			Priority:    t.Priority,
			CreatedAt:   t.CreatedAt.Format(time.RFC3339),
			UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
		}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	remoteCtx, cancelRemote := context.WithTimeout(ctx, remoteTimeout)
	defer cancelRemote()

	key := path.Join(s.ownerPrefix(owner), now.Format("20060102T150405.000000000Z")+".json")
	location, err := s.store.PutObject(remoteCtx, s.cfg.Bucket, key, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}

	url, err := s.store.GetObjectURL(remoteCtx, s.cfg.Bucket, key, s.cfg.URLTTL)
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}

	return &Export{
		Key:       key,
		Location:  location,
		URL:       url,
		ExpiresAt: now.Add(s.cfg.URLTTL),
		TaskCount: len(tasks),
	}, nil
}

func (s *exportService) ListExports(ctx context.Context, owner domain.Identity) ([]storage.ObjectInfo, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	if err := requireOwner(owner); err != nil {
		return nil, err
	}

	remoteCtx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	objects, err := s.store.ListObjects(remoteCtx, s.cfg.Bucket, s.ownerPrefix(owner)+"/")
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	return objects, nil
}

func (s *exportService) enabled() error {
	if s.store == nil || strings.TrimSpace(s.cfg.Bucket) == "" {
		return ErrExportDisabled
	}
	return nil
}

// ownerPrefix keys exports by a digest of the email so object names do not
// carry the address itself.
func (s *exportService) ownerPrefix(owner domain.Identity) string {
	sum := sha256.Sum256([]byte(owner.Email))
	return path.Join(s.cfg.KeyPrefix, hex.EncodeToString(sum[:]))
}
