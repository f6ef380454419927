package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	iauth "github.com/gymstack/gymstack/internal/auth"
	"github.com/gymstack/gymstack/internal/database"
	"github.com/gymstack/gymstack/internal/middleware"
	"github.com/gymstack/gymstack/internal/models"
	"github.com/gymstack/gymstack/internal/services"
)

type testEnv struct {
	router      *gin.Engine
	db          *gorm.DB
	classes     *services.ClassService
	sessions    *services.CheckInSessionService
	enrollments *services.EnrollmentService
	scans       *services.ScanService
}

// identityStub stands in for the JWT middleware: tests choose an identity per
// request through headers instead of minting tokens.
func identityStub() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader("X-Test-User"); userID != "" {
			c.Set(middleware.CtxUserIDKey, userID)
		}
		if memberID := c.GetHeader("X-Test-Member"); memberID != "" {
			c.Set(middleware.CtxMemberIDKey, memberID)
		}
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set(middleware.CtxRoleKey, iauth.Role(role))
		}
		c.Next()
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	classes, err := services.NewClassService(db)
	require.NoError(t, err)
	sessions, err := services.NewCheckInSessionService(db)
	require.NoError(t, err)
	enrollments, err := services.NewEnrollmentService(db)
	require.NoError(t, err)
	scans, err := services.NewScanService(db)
	require.NoError(t, err)

	classHandler := NewClassHandler(classes, enrollments)
	checkinHandler := NewCheckInHandler(sessions, scans)
	enrollmentHandler := NewEnrollmentHandler(enrollments)

	router := gin.New()
	api := router.Group("/api", identityStub())
	{
		api.POST("/classes", classHandler.Create)
		api.GET("/classes", classHandler.List)
		api.GET("/classes/:id", classHandler.Get)
		api.DELETE("/classes/:id", classHandler.Delete)
		api.POST("/classes/:id/enroll", enrollmentHandler.Enroll)
		api.DELETE("/classes/:id/enroll", enrollmentHandler.Cancel)
		api.GET("/classes/:id/roster", enrollmentHandler.Roster)
		api.GET("/classes/:id/waitlist", enrollmentHandler.Waitlist)

		api.POST("/checkin/sessions", checkinHandler.OpenSession)
		api.DELETE("/checkin/sessions/:id", checkinHandler.CloseSession)
		api.GET("/checkin/sessions/:id", checkinHandler.GetSession)
		api.GET("/checkin/sessions/:id/qr", checkinHandler.SessionQR)
		api.POST("/checkin/scan", checkinHandler.Scan)
	}

	return &testEnv{
		router:      router,
		db:          db,
		classes:     classes,
		sessions:    sessions,
		enrollments: enrollments,
		scans:       scans,
	}
}

type testRequest struct {
	method  string
	path    string
	body    any
	user    string
	member  string
	role    string
	headers map[string]string
}

func (env *testEnv) do(t *testing.T, req testRequest) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	httpReq := httptest.NewRequest(req.method, req.path, reader)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.user != "" {
		httpReq.Header.Set("X-Test-User", req.user)
	}
	if req.member != "" {
		httpReq.Header.Set("X-Test-Member", req.member)
	}
	if req.role != "" {
		httpReq.Header.Set("X-Test-Role", req.role)
	}
	for key, value := range req.headers {
		httpReq.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httpReq)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
		Error   map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "expected success envelope, got %s", rec.Body.String())
	return envelope.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.False(t, envelope.Success)
	return envelope.Error.Code
}

func (env *testEnv) createClass(t *testing.T, capacity int) *models.GymClass {
	t.Helper()

	class := &models.GymClass{
		Name:     "Spin",
		Capacity: capacity,
		StartsAt: time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2025, 6, 2, 19, 0, 0, 0, time.UTC),
	}
	require.NoError(t, env.db.Create(class).Error)
	return class
}

func (env *testEnv) openSessionToken(t *testing.T, classID string) string {
	t.Helper()

	rec := env.do(t, testRequest{
		method: http.MethodPost,
		path:   "/api/checkin/sessions",
		body:   map[string]any{"class_id": classID},
		user:   "trainer-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	return token
}
