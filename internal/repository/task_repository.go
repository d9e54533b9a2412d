package repository

import (
	"context"
	"database/sql"
	"time"

	"go-task-tracker/internal/model"
)

// TaskRepo persists tasks in the `tasks` table.
type TaskRepo struct{ DB *sql.DB }

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{DB: db} }

const taskColumns = "id,title,description,status,priority,is_public,owner_id,created_at"

// Create inserts a task and returns it with its assigned ID.  The
// caller is responsible for validation; defaults (pending status,
// medium priority) are expected to be filled in already.
func (r *TaskRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	t.CreatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO tasks (title, description, status, priority, is_public, owner_id, created_at) VALUES (?,?,?,?,?,?,?)",
		t.Title, t.Description, t.Status, t.Priority, t.IsPublic, t.OwnerID, t.CreatedAt)
	if err != nil {
		return model.Task{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Task{}, err
	}
	t.ID = uint64(id)
	return t, nil
}

// GetByID fetches a single task.  Missing rows map to ErrTaskNotFound.
func (r *TaskRepo) GetByID(ctx context.Context, id uint64) (model.Task, error) {
	var t model.Task
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id=? LIMIT 1", id).
		Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.IsPublic, &t.OwnerID, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Task{}, ErrTaskNotFound
	}
	return t, err
}

// ListVisible returns the tasks a caller may see, newest first.  The
// visibility rule is applied server-side in the WHERE clause and never
// trusts client-provided filters: public tasks, the caller's own tasks,
// and everything for admins.
func (r *TaskRepo) ListVisible(ctx context.Context, callerID uint64, isAdmin bool) ([]model.Task, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if isAdmin {
		rows, err = r.DB.QueryContext(ctx,
			"SELECT "+taskColumns+" FROM tasks ORDER BY created_at DESC")
	} else {
		rows, err = r.DB.QueryContext(ctx,
			"SELECT "+taskColumns+" FROM tasks WHERE is_public=1 OR owner_id=? ORDER BY created_at DESC",
			callerID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.IsPublic, &t.OwnerID, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateStatus sets the status of a task and returns the updated row.
// Status transitions are unconstrained; authorization has already been
// enforced by the time this runs.
func (r *TaskRepo) UpdateStatus(ctx context.Context, id uint64, status string) (model.Task, error) {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE tasks SET status=? WHERE id=?", status, id); err != nil {
		return model.Task{}, err
	}
	return r.GetByID(ctx, id)
}

// CountByOwner reports how many tasks a user owns.  Used by the account
// deletion conflict check.
func (r *TaskRepo) CountByOwner(ctx context.Context, ownerID uint64) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE owner_id=?", ownerID).Scan(&n)
	return n, err
}
