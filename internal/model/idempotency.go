package model

import "time"

// IdempotencyRecord mirrors a row of the `idempotency_keys` table.  A
// record is written after the first successful execution of a write
// request carrying an Idempotency-Key header.  While unexpired, a
// repeat request with the same key replays the stored response byte
// for byte instead of re-executing the mutation.
//
// Records are scoped by (UserID, Endpoint, Key) so a key chosen by one
// client can never collide with another user's retries.  RequestHash is
// the SHA-256 digest of the original request body; a retry whose body
// hashes differently is rejected rather than replayed.
type IdempotencyRecord struct {
	UserID      uint64    // idempotency_keys.user_id
	Endpoint    string    // idempotency_keys.endpoint, "METHOD /route/path"
	Key         string    // idempotency_keys.idem_key, client supplied
	RequestHash string    // idempotency_keys.request_hash, hex SHA-256 of the body
	Status      int       // idempotency_keys.status, HTTP status of the stored response
	Response    []byte    // idempotency_keys.response, raw response body
	ExpiresAt   time.Time // idempotency_keys.expires_at
}
