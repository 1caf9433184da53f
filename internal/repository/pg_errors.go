package repository

import (
	"errors"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// foreign key names from the migrations
const (
	constraintEntryMonitorFK = "room_entries_monitor_id_fkey"
	constraintEntryRoomFK    = "room_entries_room_id_fkey"
)

func asPQError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

func isUniqueViolation(err error) bool {
	pqErr, ok := asPQError(err)
	return ok && pqErr.Code == pqUniqueViolation
}

func foreignKeyConstraint(err error) (string, bool) {
	pqErr, ok := asPQError(err)
	if !ok || pqErr.Code != pqForeignKeyViolation {
		return "", false
	}
	return pqErr.Constraint, true
}
