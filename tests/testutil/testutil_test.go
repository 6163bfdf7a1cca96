package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms/backend/internal/infrastructure/auth"
	"github.com/oms/backend/internal/interfaces/http/middleware"
)

func TestNewMockDB(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	assert.NotNil(t, mockDB.DB)
	assert.NotNil(t, mockDB.Mock)
	assert.NotNil(t, mockDB.SqlDB)
}

func TestMockDB_ExpectationsWereMet(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	// No expectations set, should pass
	mockDB.ExpectationsWereMet(t)
}

func TestNewTestContext(t *testing.T) {
	tc := NewTestContext(t)

	assert.NotNil(t, tc.Context)
	assert.NotNil(t, tc.Recorder)
	assert.NotNil(t, tc.Engine)
	assert.Equal(t, http.MethodGet, tc.Context.Request.Method)
}

func TestTestContext_SetRequestID(t *testing.T) {
	tc := NewTestContext(t)

	tc.SetRequestID("req-123")

	val, exists := tc.Context.Get(middleware.RequestIDContextKey)
	assert.True(t, exists)
	assert.Equal(t, "req-123", val)
}

func TestTestContext_SetOperator(t *testing.T) {
	tc := NewTestContext(t)

	tc.SetOperator()

	val, exists := tc.Context.Get(middleware.JWTClaimsKey)
	require.True(t, exists)

	claims, ok := val.(*auth.Claims)
	require.True(t, ok)
	assert.Equal(t, auth.OperatorSubject, claims.Subject)
}

func TestTestContext_SetHeader(t *testing.T) {
	tc := NewTestContext(t)

	tc.SetHeader("Authorization", "Bearer token")

	assert.Equal(t, "Bearer token", tc.Context.Request.Header.Get("Authorization"))
}

func TestTestContext_ResponseCode(t *testing.T) {
	tc := NewTestContext(t)
	tc.Recorder.WriteHeader(http.StatusCreated)

	assert.Equal(t, http.StatusCreated, tc.ResponseCode())
}

func TestTestAuthMiddleware(t *testing.T) {
	engine := gin.New()
	engine.Use(TestAuthMiddleware())
	engine.GET("/protected", func(c *gin.Context) {
		val, exists := c.Get(middleware.JWTClaimsKey)
		require.True(t, exists)

		claims, ok := val.(*auth.Claims)
		require.True(t, ok)
		c.String(http.StatusOK, claims.Subject)
	})

	tc := NewTestContextWithRequest(t, http.MethodGet, "/protected", nil)
	engine.ServeHTTP(tc.Recorder, tc.Context.Request)

	assert.Equal(t, http.StatusOK, tc.ResponseCode())
	assert.Equal(t, auth.OperatorSubject, tc.Recorder.Body.String())
}

func TestNewTestUUID(t *testing.T) {
	uuid1 := NewTestUUID("test-seed")
	uuid2 := NewTestUUID("test-seed")
	uuid3 := NewTestUUID("different-seed")

	// Same seed should produce same UUID
	assert.Equal(t, uuid1, uuid2)

	// Different seed should produce different UUID
	assert.NotEqual(t, uuid1, uuid3)
}

func TestNewRandomUUID(t *testing.T) {
	uuid1 := NewRandomUUID()
	uuid2 := NewRandomUUID()

	// Random UUIDs should be different
	assert.NotEqual(t, uuid1, uuid2)
}

func TestContextWithTimeout(t *testing.T) {
	ctx, cancel := ContextWithTimeout(t, 100*time.Millisecond)
	defer cancel()

	require.NotNil(t, ctx)

	// Context should have deadline
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.True(t, deadline.After(time.Now()))
}

func TestContextWithCancel(t *testing.T) {
	ctx, cancel := ContextWithCancel(t)

	require.NotNil(t, ctx)
	require.NoError(t, ctx.Err())

	cancel()
	assert.Error(t, ctx.Err())
}

func TestAssertEventually(t *testing.T) {
	counter := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		counter = 1
	}()

	AssertEventually(t, func() bool {
		return counter == 1
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestAssertNever(t *testing.T) {
	AssertNever(t, func() bool {
		return false
	}, 50*time.Millisecond, 10*time.Millisecond)
}
