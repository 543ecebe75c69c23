package services

import (
	"os"
	"testing"

	"commsub_backend/database"
	"commsub_backend/internal/config"
	"commsub_backend/internal/email"
	"commsub_backend/internal/models"
	"commsub_backend/internal/repositories"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.TTL = 60
	cfg.JWT.RefreshTTL = 24
	cfg.OTP.Issuer = "commsub-test"
	config.AppConfig = cfg

	os.Exit(m.Run())
}

// testEnv - сервисы поверх изолированной in-memory SQLite
type testEnv struct {
	db     *gorm.DB
	emails *email.MockProvider

	userRepo   *repositories.UserRepository
	deviceRepo *repositories.DeviceRepository
	subRepo    *repositories.SubscriptionRepository
	txnRepo    *repositories.TransactionRepository

	ledger  *LedgerService
	devices *DeviceService
	subs    *SubscriptionService
	auth    *AuthService
	admin   *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// Одно соединение: каждый :memory: коннект - отдельная БД
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	env := &testEnv{
		db:         db,
		emails:     email.NewMockProvider(),
		userRepo:   repositories.NewUserRepository(),
		deviceRepo: repositories.NewDeviceRepository(),
		subRepo:    repositories.NewSubscriptionRepository(),
		txnRepo:    repositories.NewTransactionRepository(),
	}
	env.ledger = NewLedgerService(env.txnRepo)
	env.devices = NewDeviceService(env.deviceRepo, "commsub-test")
	env.subs = NewSubscriptionService(env.subRepo, env.deviceRepo, env.ledger, env.devices, env.emails)
	env.auth = NewAuthService(env.userRepo, env.subs, env.emails)
	env.admin = NewAdminService(env.subRepo, env.subs, env.ledger)
	return env
}

// createUser создает верифицированного пользователя
func (e *testEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         models.UserRoleUser,
		Status:       models.UserStatusActive,
		IsVerified:   true,
	}
	require.NoError(t, e.userRepo.Create(e.db, user))
	return user
}

// createAdmin создает администратора
func (e *testEnv) createAdmin(t *testing.T) *models.User {
	t.Helper()
	admin := &models.User{
		Username:     "admin-" + uuid.NewString()[:8],
		Email:        uuid.NewString()[:8] + "@example.com",
		PasswordHash: "x",
		Role:         models.UserRoleAdmin,
		Status:       models.UserStatusActive,
		IsVerified:   true,
	}
	require.NoError(t, e.userRepo.Create(e.db, admin))
	return admin
}

func testIMEI(n byte) string {
	return "35437208912345" + string('0'+n)
}
