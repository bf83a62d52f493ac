package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/AndrewYakovlev/aso-store/internal/config"
	"github.com/AndrewYakovlev/aso-store/internal/models"
	"github.com/AndrewYakovlev/aso-store/internal/worker"
	"github.com/AndrewYakovlev/aso-store/pkg/utils"
)

// newTestDB in-memory SQLite с одним соединением, у каждого соединения своя база
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: config.EnvTest},
		JWT:    config.JWTConfig{Secret: "test-secret", TTL: 7 * 24 * time.Hour},
		SMS:    config.SMSConfig{Provider: "sms_ru", Timeout: time.Second},
		Security: config.SecurityConfig{
			BCryptCost:      bcrypt.MinCost,
			CodeLength:      6,
			CodeTTL:         10 * time.Minute,
			MaxCodeAttempts: 3,
			SendCodeLimit:   3,
			SendCodeWindow:  10 * time.Minute,
		},
	}
}

// testClock управляемые часы для сервисов
type testClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newTestClock() *testClock {
	return &testClock{cur: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

// inlineTasks выполняет задачи синхронно
type inlineTasks struct {
	mu   sync.Mutex
	errs []error
}

func (i *inlineTasks) Submit(name string, task worker.Task) bool {
	err := task(context.Background())
	i.mu.Lock()
	i.errs = append(i.errs, err)
	i.mu.Unlock()
	return true
}

var _ TaskSubmitter = (*inlineTasks)(nil)

// fakeSMS запоминает отправленные коды
type fakeSMS struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func newFakeSMS() *fakeSMS {
	return &fakeSMS{codes: map[string]string{}}
}

func (f *fakeSMS) SendOTP(ctx context.Context, phone, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.codes[phone] = code
	return nil
}

func (f *fakeSMS) LastCode(phone string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codes[phone]
}

type authFixture struct {
	db      *gorm.DB
	redis   *miniredis.Miniredis
	clock   *testClock
	sms     *fakeSMS
	tasks   *inlineTasks
	tokens  *utils.TokenCodec
	auth    *AuthService
	otp     *OTPService
	merge   *MergeService
	anon    *AnonymousService
	users   *UserService
	catalog *CatalogService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	cfg := testConfig()
	db := newTestDB(t)
	mr, rdb := newTestRedis(t)
	clock := newTestClock()
	logger := zap.NewNop()
	tasks := &inlineTasks{}
	sms := newFakeSMS()
	tokens := utils.NewTokenCodec(cfg.JWT.Secret, cfg.JWT.TTL)

	otp := NewOTPService(db, cfg.Security)
	otp.now = clock.Now
	merge := NewMergeService(db, logger)
	merge.now = clock.Now
	anon := NewAnonymousService(db, logger)
	anon.now = clock.Now
	audit := NewAuditService(db, tasks, logger)
	audit.now = clock.Now

	auth := NewAuthService(db, rdb, cfg, otp, merge, sms, tokens, audit, logger)
	auth.now = clock.Now

	catalog := NewCatalogService(db, anon, tasks, logger)
	catalog.now = clock.Now

	return &authFixture{
		db:      db,
		redis:   mr,
		clock:   clock,
		sms:     sms,
		tasks:   tasks,
		tokens:  tokens,
		auth:    auth,
		otp:     otp,
		merge:   merge,
		anon:    anon,
		users:   NewUserService(db, audit, logger),
		catalog: catalog,
	}
}

func createUser(t *testing.T, db *gorm.DB, phone string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{Phone: phone, Role: role}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createAnonymous(t *testing.T, db *gorm.DB) *models.AnonymousUser {
	t.Helper()
	token, err := utils.GenerateSecureToken(32)
	require.NoError(t, err)
	sessionID, err := utils.GenerateSecureToken(16)
	require.NoError(t, err)

	anon := &models.AnonymousUser{Token: token, SessionID: sessionID, LastActivity: time.Now().UTC()}
	require.NoError(t, db.Create(anon).Error)
	return anon
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
