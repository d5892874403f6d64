package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"task-tracker/internal/auth"
	"task-tracker/internal/domain"
	"task-tracker/internal/repository"
	"task-tracker/internal/repository/sqlite"
	"task-tracker/internal/storage"
)

var (
	ana = domain.Identity{Username: "ana", Email: "ana@x.com"}
	bob = domain.Identity{Username: "bob", Email: "bob@x.com"}
)

type fixture struct {
	db     *sql.DB
	users  UserService
	tasks  TaskService
	tokens *auth.TokenService
	taskDB *sqlite.TaskRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(context.Background(), db))

	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService("secret", time.Hour, "task-tracker")
	require.NoError(t, err)

	taskRepo := sqlite.NewTaskRepository(db)
	return &fixture{
		db:     db,
		users:  NewUserService(sqlite.NewUserRepository(db), hasher, tokens, time.Second),
		tasks:  NewTaskService(taskRepo, time.Second),
		tokens: tokens,
		taskDB: taskRepo,
	}
}

func (f *fixture) register(t *testing.T, id domain.Identity) {
	t.Helper()
	_, err := f.users.Register(context.Background(), RegisterInput{
		Username: id.Username, Email: id.Email, Password: "p4ss", ContactNumber: "555",
	})
	require.NoError(t, err)
}

func sampleInput() TaskInput {
	return TaskInput{Title: "Write paper", Description: "draft", DueDate: "2024-12-01", Category: "work"}
}

func strPtr(s string) *string { return &s }

func TestRegister_ValidationNamesMissingFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Register(context.Background(), RegisterInput{Username: "ana", Password: "p"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"email", "contactNumber"}, verr.Fields)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)

	_, err := f.users.Register(context.Background(), RegisterInput{
		Username: "other", Email: " ANA@x.com ", Password: "x", ContactNumber: "1",
	})
	require.ErrorIs(t, err, ErrConflict)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_StoresHashNotPlaintext(t *testing.T) {
	f := newFixture(t)

	user, err := f.users.Register(context.Background(), RegisterInput{
		Username: "ana", Email: "ana@x.com", Password: "p4ss", ContactNumber: "555",
	})
	require.NoError(t, err)
	assert.Empty(t, user.PasswordHash, "returned user must not carry the hash")

	var stored string
	require.NoError(t, f.db.QueryRow(`SELECT password_hash FROM users WHERE email = ?`, "ana@x.com").Scan(&stored))
	assert.NotEqual(t, "p4ss", stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored), []byte("p4ss")))
}

func TestRegister_PasswordLongerThanBcryptLimit(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Register(context.Background(), RegisterInput{
		Username: "ana", Email: "ana@x.com", Password: strings.Repeat("a", 80), ContactNumber: "555",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"password"}, verr.Fields)

	_, err = f.users.Register(context.Background(), RegisterInput{
		Username: "ana", Email: "ana@x.com", Password: strings.Repeat("a", auth.MaxPasswordBytes), ContactNumber: "555",
	})
	require.NoError(t, err)

	_, err = f.users.Login(context.Background(), "ana@x.com", strings.Repeat("a", 80))
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)

	res, err := f.users.Login(context.Background(), "ana@x.com", "p4ss")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Empty(t, res.User.PasswordHash)

	identity, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, ana, identity)
}

func TestLogin_BadCredentialsAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)

	_, errWrongPass := f.users.Login(context.Background(), "ana@x.com", "nope")
	_, errNoUser := f.users.Login(context.Background(), "ghost@x.com", "p4ss")

	require.ErrorIs(t, errWrongPass, ErrInvalidCredentials)
	require.ErrorIs(t, errNoUser, ErrInvalidCredentials)
	assert.Equal(t, errWrongPass.Error(), errNoUser.Error())
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Login(context.Background(), "", "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"email", "password"}, verr.Fields)
}

func TestFindByEmail_HidesHash(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)

	user, err := f.users.FindByEmail(context.Background(), "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)
	assert.Empty(t, user.PasswordHash)

	_, err = f.users.FindByEmail(context.Background(), "ghost@x.com")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateTask_DefaultsAndOwner(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)

	task, err := f.tasks.CreateTask(context.Background(), ana, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, domain.TaskPriorityLow, task.Priority)
	assert.Equal(t, "ana@x.com", task.OwnerEmail)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), task.DueDate)
}

func TestCreateTask_Validation(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)

	_, err := f.tasks.CreateTask(context.Background(), ana, TaskInput{Title: "x"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"description", "dueDate", "category"}, verr.Fields)

	in := sampleInput()
	in.DueDate = "next tuesday"
	_, err = f.tasks.CreateTask(context.Background(), ana, in)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"dueDate"}, verr.Fields)
}

func TestCreateTask_DuplicatePerOwner(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)
	f.register(t, bob)

	_, err := f.tasks.CreateTask(context.Background(), ana, sampleInput())
	require.NoError(t, err)

	_, err = f.tasks.CreateTask(context.Background(), ana, sampleInput())
	require.ErrorIs(t, err, ErrDuplicateTask)

	_, err = f.tasks.CreateTask(context.Background(), bob, sampleInput())
	require.NoError(t, err)
}

func TestTaskOwnershipIsolation(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)
	f.register(t, bob)
	ctx := context.Background()

	task, err := f.tasks.CreateTask(ctx, ana, sampleInput())
	require.NoError(t, err)

	_, err = f.tasks.GetTask(ctx, bob, task.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.tasks.UpdateTask(ctx, bob, task.ID, TaskUpdate{Title: strPtr("mine now")})
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, f.tasks.DeleteTask(ctx, bob, task.ID), ErrNotFound)

	// a truly missing id looks the same
	_, err = f.tasks.GetTask(ctx, bob, "6f1c1a52-55a8-4a5a-9a4c-2a0b7f0e9f10")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := f.tasks.GetTask(ctx, ana, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write paper", got.Title)
}

func TestTaskOperations_MalformedID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var verr *ValidationError
	_, err := f.tasks.GetTask(ctx, ana, "not-an-id")
	require.ErrorAs(t, err, &verr)
	_, err = f.tasks.UpdateTask(ctx, ana, "123", TaskUpdate{})
	require.ErrorAs(t, err, &verr)
	require.ErrorAs(t, f.tasks.DeleteTask(ctx, ana, ""), &verr)
}

func TestUpdateTask_PartialStatus(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)
	ctx := context.Background()

	in := sampleInput()
	in.Priority = domain.TaskPriorityHigh
	task, err := f.tasks.CreateTask(ctx, ana, in)
	require.NoError(t, err)

	updated, err := f.tasks.UpdateTask(ctx, ana, task.ID, TaskUpdate{Status: strPtr(domain.TaskStatusCompleted)})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, updated.Status)
	assert.Equal(t, task.Title, updated.Title)
	assert.Equal(t, task.Description, updated.Description)
	assert.True(t, task.DueDate.Equal(updated.DueDate))
	assert.Equal(t, task.Category, updated.Category)
	assert.Equal(t, domain.TaskPriorityHigh, updated.Priority)
	assert.Equal(t, "ana@x.com", updated.OwnerEmail)
}

func TestUpdateTask_RejectsBlankAndBadDate(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)
	ctx := context.Background()

	task, err := f.tasks.CreateTask(ctx, ana, sampleInput())
	require.NoError(t, err)

	var verr *ValidationError
	_, err = f.tasks.UpdateTask(ctx, ana, task.ID, TaskUpdate{Title: strPtr("  ")})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"title"}, verr.Fields)

	_, err = f.tasks.UpdateTask(ctx, ana, task.ID, TaskUpdate{DueDate: strPtr("31/12/2024")})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"dueDate"}, verr.Fields)
}

func TestUpdateTask_EmptyPatchReturnsCurrent(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)
	ctx := context.Background()

	task, err := f.tasks.CreateTask(ctx, ana, sampleInput())
	require.NoError(t, err)

	got, err := f.tasks.UpdateTask(ctx, ana, task.ID, TaskUpdate{})
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestUpdateTask_CollisionIsConflict(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)
	ctx := context.Background()

	_, err := f.tasks.CreateTask(ctx, ana, sampleInput())
	require.NoError(t, err)
	in := sampleInput()
	in.Title = "Other"
	other, err := f.tasks.CreateTask(ctx, ana, in)
	require.NoError(t, err)

	_, err = f.tasks.UpdateTask(ctx, ana, other.ID, TaskUpdate{Title: strPtr("Write paper")})
	require.ErrorIs(t, err, ErrConflict)
}

func TestCreateTask_UnregisteredOwner(t *testing.T) {
	f := newFixture(t)

	_, err := f.tasks.CreateTask(context.Background(), domain.Identity{Username: "ghost", Email: "ghost@x.com"}, sampleInput())
	require.ErrorIs(t, err, ErrUnknownOwner)
}

func TestTaskService_RequiresIdentity(t *testing.T) {
	f := newFixture(t)

	_, err := f.tasks.ListTasks(context.Background(), domain.Identity{})
	require.ErrorIs(t, err, ErrMissingIdentity)
	_, err = f.tasks.CreateTask(context.Background(), domain.Identity{Username: "x"}, sampleInput())
	require.ErrorIs(t, err, ErrMissingIdentity)
}

type blockingTaskRepo struct {
	repository.TaskRepository
}

func (blockingTaskRepo) ListByOwner(ctx context.Context, _ string) ([]domain.Task, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestListTasks_StoreTimeout(t *testing.T) {
	svc := NewTaskService(blockingTaskRepo{}, 10*time.Millisecond)

	_, err := svc.ListTasks(context.Background(), ana)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestParseDueDate(t *testing.T) {
	d, err := ParseDueDate("2024-12-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDueDate("2024-12-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC), d)

	_, err = ParseDueDate("tomorrow")
	require.Error(t, err)
}

// --- exports ---

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]string
	putErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]string{}}
}

func (s *fakeStorage) PutObject(_ context.Context, bucket, key string, body io.Reader, _ string) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = string(data)
	return "s3://" + bucket + "/" + key, nil
}

func (s *fakeStorage) ListObjects(_ context.Context, _ string, prefix string) ([]storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.ObjectInfo
	for k, v := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (s *fakeStorage) GetObjectURL(_ context.Context, bucket, key string, expires time.Duration) (string, error) {
	return "https://example.invalid/" + bucket + "/" + key + "?expires=" + expires.String(), nil
}

func TestExport_UploadsOnlyOwnersTasks(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)
	f.register(t, bob)
	ctx := context.Background()

	_, err := f.tasks.CreateTask(ctx, ana, sampleInput())
	require.NoError(t, err)
	bobsInput := sampleInput()
	bobsInput.Title = "Bob's secret"
	_, err = f.tasks.CreateTask(ctx, bob, bobsInput)
	require.NoError(t, err)

	store := newFakeStorage()
	svc := NewExportService(f.taskDB, store, ExportConfig{Bucket: "exports", KeyPrefix: "/task-exports/", URLTTL: time.Minute}, time.Second).(*exportService)
	svc.now = func() time.Time { return time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC) }

	exp, err := svc.Export(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, 1, exp.TaskCount)
	assert.True(t, strings.HasPrefix(exp.Key, "task-exports/"))
	assert.NotContains(t, exp.Key, "ana@x.com")
	assert.Equal(t, time.Date(2024, 11, 1, 12, 1, 0, 0, time.UTC), exp.ExpiresAt)
	assert.Contains(t, exp.URL, exp.Key)

	body := store.objects[exp.Key]
	assert.Contains(t, body, "Write paper")
	assert.NotContains(t, body, "Bob's secret")

	anaList, err := svc.ListExports(ctx, ana)
	require.NoError(t, err)
	assert.Len(t, anaList, 1)

	bobList, err := svc.ListExports(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, bobList)
}

func TestExport_Disabled(t *testing.T) {
	f := newFixture(t)

	svc := NewExportService(f.taskDB, nil, ExportConfig{Bucket: "exports"}, time.Second)
	_, err := svc.Export(context.Background(), ana)
	require.ErrorIs(t, err, ErrExportDisabled)

	svc = NewExportService(f.taskDB, newFakeStorage(), ExportConfig{}, time.Second)
	_, err = svc.ListExports(context.Background(), ana)
	require.ErrorIs(t, err, ErrExportDisabled)
}

func TestExport_UploadFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, ana)

	store := newFakeStorage()
	store.putErr = errors.New("s3 down")
	svc := NewExportService(f.taskDB, store, ExportConfig{Bucket: "exports"}, time.Second)

	_, err := svc.Export(context.Background(), ana)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload export")
}
