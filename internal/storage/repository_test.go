package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guttosm/pricefinder/internal/domain/models"
	"github.com/shopspring/decimal"
)

type dummyErr struct{}

func (dummyErr) Error() string { return "dummy" }

func newMockRepo(t *testing.T) (*pricesRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	repo := &pricesRepository{db: db}
	cleanup := func() { _ = db.Close() }
	return repo, mock, cleanup
}

var candidatesRegex = regexp.MustCompile(`SELECT id, product_id, brand_id, price_list, start_date, end_date, priority, price, curr\s+FROM prices\s+WHERE product_id = \$1 AND brand_id = \$2`)

func candidateColumns() []string {
	return []string{"id", "product_id", "brand_id", "price_list", "start_date", "end_date", "priority", "price", "curr"}
}

func TestFindCandidates_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	start := time.Date(2020, 6, 14, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 12, 31, 23, 59, 59, 0, time.UTC)

	cases := []struct {
		name      string
		rows      *sqlmock.Rows
		wantCount int
	}{
		{
			name: "two rows",
			rows: sqlmock.NewRows(candidateColumns()).
				AddRow(int64(2), int64(35455), int64(1), int64(2), start, end, int64(1), []byte("25.45"), "EUR").
				AddRow(int64(1), int64(35455), int64(1), int64(1), start, end, int64(0), []byte("35.50"), "EUR"),
			wantCount: 2,
		},
		{
			name:      "no rows",
			rows:      sqlmock.NewRows(candidateColumns()),
			wantCount: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock.ExpectQuery(candidatesRegex.String()).
				WithArgs(int64(35455), int64(1)).
				WillReturnRows(tc.rows)

			out, err := repo.FindCandidates(context.Background(), 35455, 1)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if out == nil {
				t.Fatalf("want non-nil slice")
			}
			if len(out) != tc.wantCount {
				t.Fatalf("got %d rows, want %d", len(out), tc.wantCount)
			}
			if tc.wantCount > 0 {
				first := out[0]
				if first.ID != 2 || first.PriceList != 2 || first.Priority != 1 || first.Currency != "EUR" {
					t.Fatalf("unexpected first row: %+v", first)
				}
				if !first.Amount.Equal(decimal.RequireFromString("25.45")) {
					t.Fatalf("amount=%s, want 25.45", first.Amount)
				}
				if !first.StartDate.Equal(start) || !first.EndDate.Equal(end) {
					t.Fatalf("unexpected window: %v - %v", first.StartDate, first.EndDate)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestFindCandidates_QueryError(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectQuery(candidatesRegex.String()).WillReturnError(dummyErr{})
	if _, err := repo.FindCandidates(context.Background(), 35455, 1); err == nil {
		t.Fatalf("expected query error")
	}
}

func TestFindCandidates_ScanError(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	rows := sqlmock.NewRows(candidateColumns()).
		AddRow("not-an-id", int64(35455), int64(1), int64(1), time.Now(), time.Now(), int64(0), []byte("1.00"), "EUR")
	mock.ExpectQuery(candidatesRegex.String()).WillReturnRows(rows)

	if _, err := repo.FindCandidates(context.Background(), 35455, 1); err == nil {
		t.Fatalf("expected scan error")
	}
}

func TestPing_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectPing()
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	mock.ExpectPing().WillReturnError(dummyErr{})
	if err := repo.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error")
	}
}

func TestIngestionLog_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM ingestion_log WHERE filename = $1)")).
		WithArgs("tariff.csv").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := repo.HasIngestionForFile(ctx, "tariff.csv")
	if err != nil || !ok {
		t.Fatalf("HasIngestionForFile: ok=%v err=%v", ok, err)
	}

	mock.ExpectExec(`INSERT INTO ingestion_log \(filename, row_count\)`).
		WithArgs("tariff.csv", 4).WillReturnResult(sqlmock.NewResult(1, 1))
	if err := repo.UpsertIngestionLog(ctx, "tariff.csv", 4); err != nil {
		t.Fatalf("UpsertIngestionLog: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM prices WHERE source_file = $1")).
		WithArgs("tariff.csv").WillReturnResult(sqlmock.NewResult(0, 4))
	if err := repo.DeletePricesBySource(ctx, "tariff.csv"); err != nil {
		t.Fatalf("DeletePricesBySource: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNewPricesRepository_Construct(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	if r := NewPricesRepository(db); r == nil {
		t.Fatalf("expected non-nil repository")
	}
}

func batch() []models.Price {
	return []models.Price{
		{
			ProductID: 35455,
			BrandID:   1,
			PriceList: 1,
			StartDate: time.Date(2020, 6, 14, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2020, 12, 31, 23, 59, 59, 0, time.UTC),
			Priority:  0,
			Amount:    decimal.RequireFromString("35.50"),
			Currency:  "EUR",
		},
	}
}

func TestInsertPricesBatch_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO brands")).WithArgs(sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	// pq.CopyIn is driver-specific; sqlmock sees it as a plain prepared statement.
	prep := mock.ExpectPrepare(".*")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.InsertPricesBatch(context.Background(), "tariff.csv", batch()); err != nil {
		t.Fatalf("InsertPricesBatch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBrandIDs(t *testing.T) {
	prices := []models.Price{{BrandID: 2}, {BrandID: 1}, {BrandID: 2}, {BrandID: 1}, {BrandID: 3}}
	got := brandIDs(prices)
	want := []int64{2, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("brandIDs=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("brandIDs=%v, want %v", got, want)
		}
	}
	if got := brandIDs(nil); got == nil || len(got) != 0 {
		t.Fatalf("brandIDs(nil)=%v, want empty", got)
	}
}

func TestInsertPricesBatch_Errors(t *testing.T) {
	cases := []struct {
		name  string
		setup func(mock sqlmock.Sqlmock)
	}{
		{
			name: "begin",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(dummyErr{})
			},
		},
		{
			name: "set local",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnError(dummyErr{})
				mock.ExpectRollback()
			},
		},
		{
			name: "register brands",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO brands")).WillReturnError(dummyErr{})
				mock.ExpectRollback()
			},
		},
		{
			name: "row exec",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO brands")).WithArgs(sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
				prep := mock.ExpectPrepare(".*")
				prep.ExpectExec().WillReturnError(dummyErr{})
				mock.ExpectRollback()
			},
		},
		{
			name: "final exec",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO brands")).WithArgs(sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
				prep := mock.ExpectPrepare(".*")
				prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(".*").WillReturnError(dummyErr{})
				mock.ExpectRollback()
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock, done := newMockRepo(t)
			defer done()
			tc.setup(mock)

			if err := repo.InsertPricesBatch(context.Background(), "tariff.csv", batch()); err == nil {
				t.Fatalf("expected error on %s", tc.name)
			}
		})
	}
}
