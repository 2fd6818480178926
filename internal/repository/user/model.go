// Package user implements the Persistence Layer's upsert_user and
// quota-read operations, grounded on the teacher's
// internal/repository/user/user.go shape (BaseRepository-free here,
// since every method already takes its connection handle explicitly
// per spec §4.4).
package user

import "github.com/google/uuid"

// User is the trust-context identity the ingestion pipeline upserts
// on every authenticated call. QuotaUsed is a derived aggregate the
// core never writes directly — only reads for the precheck.
type User struct {
	ID        uuid.UUID
	Username  string
	Email     string
	Quota     int64
	QuotaUsed int64
}
