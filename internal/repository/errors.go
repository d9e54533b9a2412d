// Package repository implements the MySQL data access layer.  This file
// defines sentinel error values reused across repositories so handlers
// can translate failure modes into HTTP statuses without inspecting
// driver errors.
package repository

import "errors"

// ErrEmailExists is returned when inserting or updating a user would
// violate the unique email constraint.  Maps to HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when a user lookup matches no row.
var ErrUserNotFound = errors.New("user not found")

// ErrTaskNotFound is returned when a task lookup matches no row.  The
// authorization middleware folds this into a uniform 403 so callers
// cannot probe for the existence of other users' tasks.
var ErrTaskNotFound = errors.New("task not found")
