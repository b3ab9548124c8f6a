package testsupport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"topicmingle/internal/aggregation"
	"topicmingle/internal/config"
	"topicmingle/internal/timeframe"
	"topicmingle/internal/tracking"
)

// testDBCache caches test databases by root test name so repeated calls
// within one test share a database.
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager.
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates an in-memory database with every tracking table
// migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(tracking.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager, switching the configuration
// to the test environment when it is not already there.
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()

	if config.GetConfig().Environment != config.Test {
		t.Setenv("TOPICMINGLE_ENV", config.Test)
		config.Reset()
	}
	require.Equal(t, config.Test, config.GetConfig().Environment)

	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanTables empties the given tables.
func CleanTables(db *gorm.DB, tables ...string) {
	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// NewTestApp builds a fiber app with the given routes mounted against db.
func NewTestApp(t *testing.T, db *gorm.DB, mount func(*cartridge.Server)) *fiber.App {
	t.Helper()

	appConfig := config.GetConfig()

	// Same server settings as production; internal.NewServerConfig cannot be
	// imported here without a cycle.
	cfg := cartridge.DefaultServerConfig()
	cfg.EnableSecFetchSite = false
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = NewTestDBManager(db)

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	mount(srv)
	return srv.App()
}

// CreateSession inserts a main-site session row.
func CreateSession(t *testing.T, db *gorm.DB, sessionID, ip string, lastActive time.Time) tracking.Session {
	t.Helper()
	s := tracking.Session{
		ID:         "id-" + sessionID,
		SessionID:  sessionID,
		IPAddress:  ip,
		Source:     "direct",
		CreatedAt:  lastActive,
		LastActive: lastActive,
	}
	require.NoError(t, db.Create(&s).Error)
	return s
}

// FakeEventStore is an in-memory project store that counts lookups.
type FakeEventStore struct {
	Sessions       []aggregation.RawSession
	Events         []aggregation.RawEvent
	RelatedSearch  map[string]string
	Blogs          map[string]string
	SessionsErr    error
	EventsErr      error
	LabelErr       error
	Delay          time.Duration
	searchQueries  atomic.Int32
	blogQueries    atomic.Int32
	sessionQueries atomic.Int32
}

func (f *FakeEventStore) wait(ctx context.Context) error {
	if f.Delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FakeEventStore) ListSessions(ctx context.Context, _ timeframe.TimeFrame) ([]aggregation.RawSession, error) {
	f.sessionQueries.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.Sessions, f.SessionsErr
}

func (f *FakeEventStore) ListEvents(ctx context.Context, _ timeframe.TimeFrame) ([]aggregation.RawEvent, error) {
	return f.Events, f.EventsErr
}

func (f *FakeEventStore) RelatedSearchLabels(_ context.Context, ids []string) (map[string]string, error) {
	f.searchQueries.Add(1)
	if f.LabelErr != nil {
		return nil, f.LabelErr
	}
	return pick(f.RelatedSearch, ids), nil
}

func (f *FakeEventStore) BlogLabels(_ context.Context, ids []string) (map[string]string, error) {
	f.blogQueries.Add(1)
	if f.LabelErr != nil {
		return nil, f.LabelErr
	}
	return pick(f.Blogs, ids), nil
}

// RelatedSearchQueries is the number of related-search lookups issued.
func (f *FakeEventStore) RelatedSearchQueries() int { return int(f.searchQueries.Load()) }

// BlogQueries is the number of blog lookups issued.
func (f *FakeEventStore) BlogQueries() int { return int(f.blogQueries.Load()) }

// SessionQueries is the number of session listings issued.
func (f *FakeEventStore) SessionQueries() int { return int(f.sessionQueries.Load()) }

func pick(m map[string]string, ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if v, ok := m[id]; ok {
			out[id] = v
		}
	}
	return out
}
