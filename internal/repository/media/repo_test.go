package media

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovacore/photonic/internal/apperr"
)

func newSQLMock(t *testing.T) (*Repo, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return New(), mock, db
}

var mediumCols = []string{"id", "owner_id", "medium_type", "leading_item_id", "album_id", "deleted_at", "created_at", "updated_at"}

func TestFindMediaZeroPerPageReturnsNilWithoutQuery(t *testing.T) {
	repo, mock, db := newSQLMock(t)
	defer db.Close()

	rows, err := repo.FindMedia(context.Background(), db, uuid.New(), Filter{PerPage: 0})
	require.NoError(t, err)
	assert.Nil(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMediaClampsPerPageToMax(t *testing.T) {
	repo, mock, db := newSQLMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM media m.*LIMIT \$2`).
		WithArgs(sqlmock.AnyArg(), maxPerPage).
		WillReturnRows(sqlmock.NewRows(mediumCols))

	_, err := repo.FindMedia(context.Background(), db, uuid.New(), Filter{PerPage: 1000})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMediaUsesStrictLessThanForDescendingCursor(t *testing.T) {
	repo, mock, db := newSQLMock(t)
	defer db.Close()

	mock.ExpectQuery(`\(info\.taken_at, m\.id\) < \(\$2, \$3\)`).
		WillReturnRows(sqlmock.NewRows(mediumCols))

	f := Filter{
		Direction: DirectionDesc,
		Cursor:    Cursor{Set: true, TakenAt: time.Now(), ID: uuid.New()},
		PerPage:   10,
	}
	_, err := repo.FindMedia(context.Background(), db, uuid.New(), f)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMediaUsesStrictGreaterThanForAscendingCursor(t *testing.T) {
	repo, mock, db := newSQLMock(t)
	defer db.Close()

	mock.ExpectQuery(`\(info\.taken_at, m\.id\) > \(\$2, \$3\)`).
		WillReturnRows(sqlmock.NewRows(mediumCols))

	f := Filter{
		Direction: DirectionAsc,
		Cursor:    Cursor{Set: true, TakenAt: time.Now(), ID: uuid.New()},
		PerPage:   10,
	}
	_, err := repo.FindMedia(context.Background(), db, uuid.New(), f)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateInfoCoalescesOnlyNilColumns(t *testing.T) {
	repo, mock, db := newSQLMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE medium_item_info SET.*taken_at = COALESCE\(taken_at, \$2\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateInfo(context.Background(), db, &Info{ID: uuid.New()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateInfoReturnsErrorWhenNoRowsMatched(t *testing.T) {
	repo, mock, db := newSQLMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE medium_item_info SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateInfo(context.Background(), db, &Info{ID: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDatabaseFailure, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveLocationReturnsErrorWhenNoRowsMatched(t *testing.T) {
	repo, mock, db := newSQLMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE locations SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MoveLocation(context.Background(), db, uuid.New(), "temp/a.jpg", Location{Variant: VariantOriginals, Path: "sun.jpg"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDatabaseFailure, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMediumNotFound(t *testing.T) {
	repo, mock, db := newSQLMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM media WHERE id = \$1`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetMedium(context.Background(), db, uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperr.KindMediumNotFound, apperr.KindOf(err))
}

func TestGetMediumWrapsOtherDatabaseErrors(t *testing.T) {
	repo, mock, db := newSQLMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM media WHERE id = \$1`).
		WillReturnError(sql.ErrConnDone)

	_, err := repo.GetMedium(context.Background(), db, uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperr.KindDatabaseFailure, apperr.KindOf(err))
}
