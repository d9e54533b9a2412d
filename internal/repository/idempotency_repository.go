package repository

import (
	"context"
	"database/sql"
	"time"

	"go-task-tracker/internal/model"
)

// IdempotencyRepo persists idempotency records in the `idempotency_keys`
// table.  The table carries a unique key over (user_id, endpoint,
// idem_key): two concurrent requests racing past Check can both execute
// the mutation, but only one Record insert wins, so all later retries
// converge on a single cached response.
type IdempotencyRepo struct{ DB *sql.DB }

func NewIdempotencyRepo(db *sql.DB) *IdempotencyRepo { return &IdempotencyRepo{DB: db} }

// Check returns the stored record for (userID, endpoint, key) if one
// exists and has not expired.  Expired rows are treated as absent;
// cleanup is left to the sweeper.
func (r *IdempotencyRepo) Check(ctx context.Context, userID uint64, endpoint, key string) (model.IdempotencyRecord, bool, error) {
	rec := model.IdempotencyRecord{UserID: userID, Endpoint: endpoint, Key: key}
	err := r.DB.QueryRowContext(ctx,
		"SELECT request_hash, status, response, expires_at FROM idempotency_keys WHERE user_id=? AND endpoint=? AND idem_key=? LIMIT 1",
		userID, endpoint, key).
		Scan(&rec.RequestHash, &rec.Status, &rec.Response, &rec.ExpiresAt)
	if err == sql.ErrNoRows {
		return model.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return model.IdempotencyRecord{}, false, err
	}
	if time.Now().UTC().After(rec.ExpiresAt) {
		return model.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

// Record stores the response of a completed write.  First write wins:
// if a concurrent duplicate already inserted a live row for the same
// scope, the insert is a no-op, unless the existing row has expired, in
// which case it is replaced.  The expires_at column must be overwritten
// last because the other IF() conditions read it.
func (r *IdempotencyRepo) Record(ctx context.Context, rec model.IdempotencyRecord) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO idempotency_keys (user_id, endpoint, idem_key, request_hash, status, response, expires_at)
		 VALUES (?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE
		   request_hash = IF(expires_at < UTC_TIMESTAMP(), VALUES(request_hash), request_hash),
		   status       = IF(expires_at < UTC_TIMESTAMP(), VALUES(status), status),
		   response     = IF(expires_at < UTC_TIMESTAMP(), VALUES(response), response),
		   expires_at   = IF(expires_at < UTC_TIMESTAMP(), VALUES(expires_at), expires_at)`,
		rec.UserID, rec.Endpoint, rec.Key, rec.RequestHash, rec.Status, rec.Response, rec.ExpiresAt)
	return err
}

// DeleteExpired removes records past their expiry and returns how many
// rows went away.  Called periodically by the background sweeper.
func (r *IdempotencyRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM idempotency_keys WHERE expires_at < UTC_TIMESTAMP()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
