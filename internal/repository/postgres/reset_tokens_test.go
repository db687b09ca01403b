package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/arklim/account-recovery/internal/repository"
)

var fixedNow = time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC)

func newResetTokenRepo(t *testing.T) (pgxmock.PgxPoolIface, *ResetTokenRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	repo := NewResetTokenRepository(mock).
		WithClock(func() time.Time { return fixedNow }).
		WithCodeGenerator(func() (string, error) { return "042017", nil })
	return mock, repo
}

func TestResetTokenRepository_Issue(t *testing.T) {
	mock, repo := newResetTokenRepo(t)

	mock.ExpectExec(`INSERT INTO auth\.password_reset_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", "042017", fixedNow, fixedNow.Add(15*time.Minute), false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	token, err := repo.Issue(context.Background(), "user-1", 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if token.Code != "042017" {
		t.Fatalf("expected code to keep its leading zero, got %q", token.Code)
	}
	if token.ID == "" || token.Used {
		t.Fatalf("unexpected token: %+v", token)
	}
	if !token.ExpiresAt.Equal(fixedNow.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", token.ExpiresAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_IssueRejectsNonPositiveTTL(t *testing.T) {
	_, repo := newResetTokenRepo(t)
	if _, err := repo.Issue(context.Background(), "user-1", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestResetTokenRepository_RotateCommits(t *testing.T) {
	mock, repo := newResetTokenRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM auth\.users WHERE id = \$1 FOR UPDATE`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("user-1"))
	mock.ExpectExec(`UPDATE auth\.password_reset_tokens SET used`).
		WithArgs(true, "user-1", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`INSERT INTO auth\.password_reset_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", "042017", fixedNow, fixedNow.Add(15*time.Minute), false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	token, err := repo.Rotate(context.Background(), "user-1", 15*time.Minute)
	if err != nil {
		t.Fatalf("Rotate returned error: %v", err)
	}
	if token.Code != "042017" {
		t.Fatalf("unexpected code %q", token.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_RotateRollsBackOnInsertFailure(t *testing.T) {
	mock, repo := newResetTokenRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM auth\.users WHERE id = \$1 FOR UPDATE`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("user-1"))
	mock.ExpectExec(`UPDATE auth\.password_reset_tokens SET used`).
		WithArgs(true, "user-1", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO auth\.password_reset_tokens`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if _, err := repo.Rotate(context.Background(), "user-1", 15*time.Minute); err == nil {
		t.Fatal("expected Rotate to fail")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_RotateUnknownUser(t *testing.T) {
	mock, repo := newResetTokenRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM auth\.users WHERE id = \$1 FOR UPDATE`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	if _, err := repo.Rotate(context.Background(), "ghost", 15*time.Minute); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_LookupOnlyMatchesNewestCode(t *testing.T) {
	mock, repo := newResetTokenRepo(t)

	mock.ExpectQuery(`AND t\.created_at = \(SELECT max\(created_at\) FROM auth\.password_reset_tokens WHERE user_id = t\.user_id\)`).
		WithArgs("ana@x.com", "042017", true).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "used", "expires_at"}))

	if _, err := repo.Lookup(context.Background(), "ana@x.com", "042017"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected superseded code to be rejected, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_Lookup(t *testing.T) {
	cases := []struct {
		name      string
		used      bool
		expiresAt time.Time
		wantID    string
		wantErr   error
	}{
		{name: "active", expiresAt: fixedNow.Add(time.Minute), wantID: "user-1"},
		{name: "expires exactly now", expiresAt: fixedNow, wantID: "user-1"},
		{name: "expired", expiresAt: fixedNow.Add(-time.Second), wantErr: repository.ErrNotFound},
		{name: "used", used: true, expiresAt: fixedNow.Add(time.Minute), wantErr: repository.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock, repo := newResetTokenRepo(t)

			rows := pgxmock.NewRows([]string{"user_id", "used", "expires_at"}).
				AddRow("user-1", tc.used, tc.expiresAt)
			mock.ExpectQuery(`SELECT t\.user_id, t\.used, t\.expires_at FROM auth\.password_reset_tokens t JOIN auth\.users u`).
				WithArgs("ana@x.com", "042017", true).
				WillReturnRows(rows)

			got, err := repo.Lookup(context.Background(), "ana@x.com", "042017")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("Lookup returned error: %v", err)
			}
			if got != tc.wantID {
				t.Fatalf("expected user id %q, got %q", tc.wantID, got)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestResetTokenRepository_LookupUnknownPair(t *testing.T) {
	mock, repo := newResetTokenRepo(t)

	mock.ExpectQuery(`FROM auth\.password_reset_tokens t`).
		WithArgs("ana@x.com", "999999", true).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "used", "expires_at"}))

	if _, err := repo.Lookup(context.Background(), "ana@x.com", "999999"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResetTokenRepository_MarkUsedIsIdempotent(t *testing.T) {
	mock, repo := newResetTokenRepo(t)

	mock.ExpectExec(`UPDATE auth\.password_reset_tokens SET used`).
		WithArgs(true, "user-1", "042017", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE auth\.password_reset_tokens SET used`).
		WithArgs(true, "user-1", "042017", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	changed, err := repo.MarkUsed(context.Background(), "user-1", "042017")
	if err != nil || !changed {
		t.Fatalf("expected first MarkUsed to change a row, changed=%v err=%v", changed, err)
	}
	changed, err = repo.MarkUsed(context.Background(), "user-1", "042017")
	if err != nil || changed {
		t.Fatalf("expected second MarkUsed to be a no-op, changed=%v err=%v", changed, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_InvalidateAll(t *testing.T) {
	mock, repo := newResetTokenRepo(t)

	mock.ExpectExec(`UPDATE auth\.password_reset_tokens SET used`).
		WithArgs(true, "user-1", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	count, err := repo.InvalidateAll(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("InvalidateAll returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 rows invalidated, got %d", count)
	}
}

func TestResetTokenRepository_ActiveToken(t *testing.T) {
	mock, repo := newResetTokenRepo(t)

	created := fixedNow.Add(-time.Minute)
	rows := pgxmock.NewRows([]string{"id", "user_id", "code", "created_at", "expires_at", "used"}).
		AddRow("tok-1", "user-1", "042017", created, created.Add(15*time.Minute), false)
	mock.ExpectQuery(`SELECT .*FROM auth\.password_reset_tokens WHERE user_id`).
		WithArgs("user-1", false, pgxmock.AnyArg()).
		WillReturnRows(rows)

	token, err := repo.ActiveToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ActiveToken returned error: %v", err)
	}
	if token.Code != "042017" || token.Age(fixedNow) != time.Minute {
		t.Fatalf("unexpected token: %+v", token)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_ActiveTokenMissing(t *testing.T) {
	mock, repo := newResetTokenRepo(t)

	mock.ExpectQuery(`FROM auth\.password_reset_tokens`).
		WithArgs("user-1", false, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "code", "created_at", "expires_at", "used"}))

	if _, err := repo.ActiveToken(context.Background(), "user-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
