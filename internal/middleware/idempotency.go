package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"go-task-tracker/internal/model"
	"go-task-tracker/pkg/apierror"
)

// IdempotencyStore is the persistence contract of the idempotency
// cache.  Implemented by repository.IdempotencyRepo.
type IdempotencyStore interface {
	Check(ctx context.Context, userID uint64, endpoint, key string) (model.IdempotencyRecord, bool, error)
	Record(ctx context.Context, rec model.IdempotencyRecord) error
}

// captureWriter captures the response body and status while forwarding
// everything to the client unchanged.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	cw.buf.Write(b)
	return cw.ResponseWriter.Write(b)
}

// Idempotency makes a single logical write safe to retry.  It applies
// only when the client supplies an Idempotency-Key header and must run
// after JWTAuth so records can be scoped per user.
//
// On a hit the stored response is replayed verbatim and the handler
// never executes.  A retry whose body hashes differently from the
// original request under the same key is rejected with 409 instead of
// silently overwriting the record.  On a miss the handler runs with a
// capturing writer and, if it produced a 2xx response, the response is
// recorded before returning.  Record failures are logged and swallowed;
// losing a record must never block the real response.
func Idempotency(store IdempotencyStore, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
			if key == "" {
				return next(c)
			}
			p, ok := CurrentPrincipal(c)
			if !ok {
				return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "authentication required")
			}

			// The body is consumed to hash it, then restored so the
			// handler can still bind it.
			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "unreadable request body")
			}
			c.Request().Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			reqHash := hex.EncodeToString(sum[:])

			ctx := c.Request().Context()
			endpoint := c.Request().Method + " " + c.Path()

			rec, found, err := store.Check(ctx, p.UserID, endpoint, key)
			if err != nil {
				// Availability over replay: execute the write anyway.
				log.Printf("idempotency: check failed for key=%s: %v", key, err)
			}
			if found {
				if rec.RequestHash != reqHash {
					return apierror.Write(c, http.StatusConflict, apierror.CodeConflict,
						"idempotency key reused with a different request body")
				}
				return c.Blob(rec.Status, echo.MIMEApplicationJSON, rec.Response)
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = cw
			if err := next(c); err != nil {
				return err
			}

			// Only successful writes become replayable; error responses
			// are safe to retry for real.
			if cw.status >= 200 && cw.status < 300 {
				rec := model.IdempotencyRecord{
					UserID:      p.UserID,
					Endpoint:    endpoint,
					Key:         key,
					RequestHash: reqHash,
					Status:      cw.status,
					Response:    cw.buf.Bytes(),
					ExpiresAt:   time.Now().UTC().Add(ttl),
				}
				if err := store.Record(ctx, rec); err != nil {
					log.Printf("idempotency: record failed for key=%s: %v", key, err)
				}
			}
			return nil
		}
	}
}
