package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func post(router *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_NilClientPassesThrough(t *testing.T) {
	t.Parallel()

	calls := 0
	router := gin.New()
	router.POST("/pay", Idempotency(nil, "pay"), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"n": calls})
	})

	for i := 0; i < 2; i++ {
		w := post(router, "same-key")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get(ReplayHeader))
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	t.Parallel()

	_, client := newRedis(t)
	var calls atomic.Int32
	router := gin.New()
	router.POST("/pay", Idempotency(client, "pay"), func(c *gin.Context) {
		n := calls.Add(1)
		c.JSON(http.StatusOK, gin.H{"n": n})
	})

	first := post(router, "key-1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get(ReplayHeader))

	second := post(router, "key-1")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	other := post(router, "key-2")
	assert.Empty(t, other.Header().Get(ReplayHeader))

	noKey := post(router, "")
	assert.Empty(t, noKey.Header().Get(ReplayHeader))

	assert.Equal(t, int32(3), calls.Load())
}

func TestIdempotency_ErrorsAreNotReplayed(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusBadRequest, http.StatusInternalServerError} {
		_, client := newRedis(t)
		var calls atomic.Int32
		router := gin.New()
		router.POST("/pay", Idempotency(client, "pay"), func(c *gin.Context) {
			if calls.Add(1) == 1 {
				c.JSON(status, gin.H{"message": "rejected"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "accepted"})
		})

		first := post(router, "retry-key")
		assert.Equal(t, status, first.Code)

		second := post(router, "retry-key")
		assert.Equal(t, http.StatusOK, second.Code, "status %d must release the key", status)
		assert.Empty(t, second.Header().Get(ReplayHeader))
		assert.Equal(t, int32(2), calls.Load())
	}
}

func TestIdempotency_ConcurrentDuplicateConflicts(t *testing.T) {
	t.Parallel()

	_, client := newRedis(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	router := gin.New()
	router.POST("/pay", Idempotency(client, "pay"), func(c *gin.Context) {
		calls.Add(1)
		close(entered)
		<-release
		c.JSON(http.StatusOK, gin.H{"checkout": "ws_CO_1"})
	})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- post(router, "dup-key") }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never reached the handler")
	}

	duplicate := post(router, "dup-key")
	assert.Equal(t, http.StatusConflict, duplicate.Code)

	close(release)
	first := <-done
	assert.Equal(t, http.StatusOK, first.Code)

	replay := post(router, "dup-key")
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(ReplayHeader))
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	t.Parallel()

	_, client := newRedis(t)
	var calls atomic.Int32
	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/pay", Idempotency(client, "pay"), func(c *gin.Context) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		c.JSON(http.StatusOK, gin.H{})
	})

	assert.Equal(t, http.StatusInternalServerError, post(router, "panic-key").Code)
	assert.Equal(t, http.StatusOK, post(router, "panic-key").Code)
}

func TestIdempotency_RedisDownFailsOpen(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	calls := 0
	router := gin.New()
	router.POST("/pay", Idempotency(client, "pay"), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{})
	})

	assert.Equal(t, http.StatusOK, post(router, "key").Code)
	assert.Equal(t, http.StatusOK, post(router, "key").Code)
	assert.Equal(t, 2, calls)
}
