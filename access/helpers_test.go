package access

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vaultshare/backend/models"
)

// newTestDB opens an isolated in-memory database. A single connection keeps
// sqlite honest about concurrent writers; the engine's own guarantees come
// from the conditional update, not from this.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.File{}, &models.AccessLog{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// fakeClock starts at the real present (ledger rows carry real insert times)
// and advances only when told to.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEngine struct {
	db        *gorm.DB
	clock     *fakeClock
	validator *Validator
	sessions  *SessionResolver
	quotas    *QuotaEnforcer
	ledger    *Ledger
	caps      *CapabilityIssuer
	servicer  *Servicer
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	db := newTestDB(t)
	clock := newFakeClock()
	quotas := NewQuotaEnforcer(db)
	ledger := NewLedger(db)
	sessions := NewSessionResolver(db, clock.Now)
	validator := NewValidator(db, quotas, sessions, clock.Now)
	caps := NewCapabilityIssuer([]byte("test-secret"), 0, clock.Now)
	servicer := NewServicer(db, validator, sessions, ledger, caps)

	return &testEngine{
		db:        db,
		clock:     clock,
		validator: validator,
		sessions:  sessions,
		quotas:    quotas,
		ledger:    ledger,
		caps:      caps,
		servicer:  servicer,
	}
}

type fileOpt func(*models.File)

func withPassword(t *testing.T, password string) fileOpt {
	t.Helper()
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	hash := string(hashBytes)
	return func(f *models.File) { f.PasswordHash = &hash }
}

func (e *testEngine) createFile(t *testing.T, opts ...fileOpt) *models.File {
	t.Helper()

	expiresAt := e.clock.Now().Add(24 * time.Hour)
	file := models.File{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		OriginalName:    "report.pdf",
		FileSize:        1024,
		ContentType:     "application/pdf",
		S3Key:           "uploads/" + uuid.NewString(),
		S3Bucket:        "test-bucket",
		AccessToken:     uuid.NewString(),
		ExpiryHours:     24,
		ExpiresAt:       &expiresAt,
		MaxViews:        10,
		SessionDuration: 15,
		IsActive:        true,
	}
	for _, opt := range opts {
		opt(&file)
	}
	if err := e.db.Create(&file).Error; err != nil {
		t.Fatalf("create test file: %v", err)
	}
	return &file
}

func (e *testEngine) reload(t *testing.T, id uuid.UUID) *models.File {
	t.Helper()
	var file models.File
	if err := e.db.First(&file, "id = ?", id).Error; err != nil {
		t.Fatalf("reload file: %v", err)
	}
	return &file
}

func (e *testEngine) countLogs(t *testing.T, id uuid.UUID, granted bool) int64 {
	t.Helper()
	var count int64
	err := e.db.Model(&models.AccessLog{}).
		Where("file_id = ? AND access_granted = ?", id, granted).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count logs: %v", err)
	}
	return count
}

func testMeta() RequestMeta {
	return RequestMeta{IPAddress: "203.0.113.7", UserAgent: "test-agent"}
}
