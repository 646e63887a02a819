package identity

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	fsys, err := DialectMigrationsFS("sqlite")
	require.NoError(t, err)

	provider, err := goose.NewProvider(goose.DialectSQLite3, sqldb, fsys)
	require.NoError(t, err)

	_, err = provider.Up(context.Background())
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func newTestRepo(t *testing.T, opts ...UsersOption) RepositoryManager {
	t.Helper()
	opts = append([]UsersOption{WithHashCost(bcrypt.MinCost)}, opts...)
	repo := NewRepositoryManager(newTestDB(t), opts...)
	repo.MustValidate()
	return repo
}

// testClock is a settable time source shared by codec and managers
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockActivitySink struct {
	mock.Mock
}

func (m *mockActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type recordingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Types() []ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) Last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Notification{}
	}
	return r.sent[len(r.sent)-1]
}

type fakeVerifier struct {
	identities map[string]*FederatedIdentity
}

func (f *fakeVerifier) Verify(_ context.Context, rawToken, audience string) (*FederatedIdentity, error) {
	if audience != "client-id" {
		return nil, ErrInvalidToken.Clone()
	}
	fed, ok := f.identities[rawToken]
	if !ok {
		return nil, ErrInvalidToken.Clone()
	}
	return fed, nil
}

type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}
