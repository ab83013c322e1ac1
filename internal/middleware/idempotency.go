package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// IdempotencyHeader carries the client-chosen key for a POST.
	IdempotencyHeader = "Idempotency-Key"
	// ReplayHeader is set on responses served from the idempotency cache.
	ReplayHeader = "Idempotent-Replay"

	idempotencyTTL    = 24 * time.Hour
	idempotencyPrefix = "idempotency:"

	// inFlightTTL bounds how long a reservation outlives a crashed request.
	// It must exceed the server write timeout.
	inFlightTTL = 2 * time.Minute
)

// releaseScript deletes a reservation only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// idempotencyRecord is the value stored under a key: a reservation token
// while the first request runs, then the response to replay.
type idempotencyRecord struct {
	Token    string          `json:"token,omitempty"`
	Response *cachedResponse `json:"response,omitempty"`
}

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
	Headers    http.Header     `json:"headers"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key so
// a retried payment request does not send a second prompt to the phone.
// The key is reserved before the handler runs; a duplicate that arrives
// while the first is still running gets 409. Only 2xx responses are kept,
// so a corrected retry with the same key runs again. scope namespaces keys
// per route. A nil client disables the middleware, and Redis errors let the
// request through unguarded.
func Idempotency(client *redis.Client, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := idempotencyPrefix + scope + ":" + key

		token, cached, err := reserve(ctx, client, cacheKey)
		if err != nil {
			slog.WarnContext(ctx, "idempotency lookup failed", slog.Any("error", err))
			c.Next()
			return
		}

		if cached != nil {
			for k, v := range cached.Headers {
				for _, val := range v {
					c.Header(k, val)
				}
			}
			c.Header(ReplayHeader, "true")
			c.Data(cached.StatusCode, "application/json; charset=utf-8", cached.Body)
			c.Abort()
			return
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"success": false,
				"message": "A request with this Idempotency-Key is already in progress",
			})
			return
		}

		bg := context.WithoutCancel(ctx)
		stored := false
		defer func() {
			if stored {
				return
			}
			if err := releaseScript.Run(bg, client, []string{cacheKey}, encodeRecord(idempotencyRecord{Token: token})).Err(); err != nil {
				slog.WarnContext(ctx, "idempotency release failed", slog.Any("error", err))
			}
		}()

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		if status := c.Writer.Status(); status >= 200 && status < 300 {
			record := idempotencyRecord{Response: &cachedResponse{
				StatusCode: status,
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}}
			if err := client.Set(bg, cacheKey, encodeRecord(record), idempotencyTTL).Err(); err != nil {
				slog.WarnContext(ctx, "idempotency store failed", slog.Any("error", err))
				return
			}
			stored = true
		}
	}
}

// reserve claims cacheKey for this request. It returns a token when the
// claim succeeded, the stored response when one exists, or neither when
// another request holds the key.
func reserve(ctx context.Context, client *redis.Client, cacheKey string) (string, *cachedResponse, error) {
	token := uuid.New().String()
	marker := encodeRecord(idempotencyRecord{Token: token})

	// A second attempt covers a reservation released between SETNX and GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := client.SetNX(ctx, cacheKey, marker, inFlightTTL).Result()
		if err != nil {
			return "", nil, err
		}
		if ok {
			return token, nil, nil
		}

		data, err := client.Get(ctx, cacheKey).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", nil, err
		}

		var record idempotencyRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return "", nil, err
		}
		return "", record.Response, nil
	}
	return "", nil, nil
}

func encodeRecord(record idempotencyRecord) string {
	data, _ := json.Marshal(record)
	return string(data)
}

// extractResponseHeaders keeps only the headers worth replaying.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
