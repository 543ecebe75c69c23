package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"commsub_backend/database"
	"commsub_backend/internal/app"
	"commsub_backend/internal/config"
	"commsub_backend/internal/models"
	"commsub_backend/internal/plans"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// setupTestServer поднимает полный роутер приложения на in-memory SQLite
func setupTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Env = "test"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.TTL = 60
	cfg.JWT.RefreshTTL = 24
	cfg.OTP.Issuer = "commsub-test"
	cfg.Storage.Type = "local"
	cfg.Storage.BasePath = t.TempDir()
	cfg.Storage.BaseURL = "/files"
	cfg.Upload.MaxSize = 1 << 20
	cfg.Upload.AllowedTypes = []string{"image/png"}
	config.AppConfig = cfg

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	router, _ := app.SetupRouter(cfg, db)
	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerBody(username, imei string) gin.H {
	return gin.H{
		"username":   username,
		"email":      username + "@example.com",
		"password":   "Str0ngPass!",
		"imei":       imei,
		"deviceName": "test phone",
		"plan":       plans.MobileV4Basic,
	}
}

// loginAs регистрирует, верифицирует и логинит пользователя
func loginAs(t *testing.T, router *gin.Engine, db *gorm.DB, username, imei string) string {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", registerBody(username, imei))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, db.Model(&models.User{}).
		Where("username = ?", username).
		Update("is_verified", true).Error)

	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    username + "@example.com",
		"password": "Str0ngPass!",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestRegisterEndpoint(t *testing.T) {
	router, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", registerBody("alice", "354372089123451"))
	assert.Equal(t, http.StatusCreated, w.Code)

	// Повтор того же email - контрактный 400, не 409
	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", registerBody("alice", "354372089123452"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	router, _ := setupTestServer(t)

	body := registerBody("alice", "не-imei")
	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "imei")

	body = registerBody("bob", "354372089123451")
	body["plan"] = "mobile-v9-ultra"
	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeRequiresAuth(t *testing.T) {
	router, db := setupTestServer(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := loginAs(t, router, db, "alice", "354372089123451")
	w = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
}

func TestAdminRoutesForbiddenForUser(t *testing.T) {
	router, db := setupTestServer(t)

	token := loginAs(t, router, db, "alice", "354372089123451")
	w := doJSON(t, router, http.MethodGet, "/api/v1/admin/queue", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminQueueFlow(t *testing.T) {
	router, db := setupTestServer(t)

	userToken := loginAs(t, router, db, "alice", "354372089123451")
	adminToken := loginAs(t, router, db, "boss", "354372089123452")
	require.NoError(t, db.Model(&models.User{}).
		Where("username = ?", "boss").
		Update("role", models.UserRoleAdmin).Error)
	// Роль в токене обновится после нового входа
	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    "boss@example.com",
		"password": "Str0ngPass!",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var relogin struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &relogin))
	adminToken = relogin.AccessToken

	// В очереди две pending-заявки (по одной на регистрацию)
	w = doJSON(t, router, http.MethodGet, "/api/v1/admin/queue?status=pending", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var queue struct {
		Items []models.Subscription `json:"items"`
		Total int64                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	assert.Equal(t, int64(2), queue.Total)

	// Одобряем заявку пользователя с немедленной активацией
	var target string
	for _, item := range queue.Items {
		if item.IMEI == "354372089123451" {
			target = item.ID
		}
	}
	require.NotEmpty(t, target)

	w = doJSON(t, router, http.MethodPost, "/api/v1/admin/subscriptions/"+target+"/approve", adminToken,
		gin.H{"activateNow": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Пользователь видит активную подписку
	w = doJSON(t, router, http.MethodGet, "/api/v1/subscriptions/me", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"active"`)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
