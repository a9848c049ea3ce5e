package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guttosm/pricefinder/internal/domain/models"
)

type fakeRepo struct {
	fakeRepoIngestion
	batches [][]models.Price
	err     error
}

func (f *fakeRepo) InsertPricesBatch(_ context.Context, _ string, prices []models.Price) error {
	f.batches = append(f.batches, append([]models.Price(nil), prices...))
	return f.err
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return p
}

func TestParseAndPersistFile_TableDriven(t *testing.T) {
	dir := t.TempDir()
	validRow := "1;2020-06-14-00.00.00;2020-12-31-23.59.59;1;35455;0;35,50;EUR\n"

	cases := []struct {
		name        string
		content     string
		batch       int
		wantErr     string
		wantBatches int
		wantRows    int
	}{
		{name: "ok single row", content: tariffHeader + validRow, batch: 5, wantBatches: 1, wantRows: 1},
		{name: "batches split", content: tariffHeader + validRow + validRow + validRow, batch: 2, wantBatches: 2, wantRows: 3},
		{name: "header only", content: tariffHeader, batch: 5, wantBatches: 0, wantRows: 0},
		{name: "blank lines skipped", content: tariffHeader + "\n" + validRow + "\n", batch: 5, wantBatches: 1, wantRows: 1},
		{name: "bad header order", content: "X;Y;Z\n", batch: 5, wantErr: "invalid header length"},
		{name: "renamed column", content: strings.Replace(tariffHeader, "CURR", "CURRENCY", 1) + validRow, batch: 5, wantErr: "invalid header at col 8"},
		{name: "bad col count", content: tariffHeader + "a;b\n", batch: 5, wantErr: "invalid column count on line 2"},
		{name: "invalid price", content: tariffHeader + "1;2020-06-14-00.00.00;2020-12-31-23.59.59;1;35455;0;abc;EUR\n", batch: 5, wantErr: "invalid PRICE"},
		{name: "empty file", content: "", batch: 5, wantErr: "read header"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempFile(t, dir, "file.csv", tc.content)
			repo := &fakeRepo{}
			n, err := parseAndPersistFile(context.Background(), path, "file.csv", repo, tc.batch)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantRows, n)
			assert.Len(t, repo.batches, tc.wantBatches)
		})
	}
}

func TestParseAndPersistFile_InsertError(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "file.csv", sampleFile())
	repo := &fakeRepo{err: errors.New("copy failed")}

	_, err := parseAndPersistFile(context.Background(), path, "file.csv", repo, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy failed")
}

func TestParseAndPersistFile_Canceled(t *testing.T) {
	path := writeTempFile(t, t.TempDir(), "file.csv", sampleFile())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := parseAndPersistFile(ctx, path, "file.csv", &fakeRepo{}, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecordToPrice(t *testing.T) {
	row := func(s string) []string { return strings.Split(s, ";") }

	p, err := recordToPrice(row("1;2020-06-14-15.00.00;2020-06-14-18.30.00;2;35455;1;25,45;eur"))
	require.NoError(t, err)
	assert.Equal(t, models.Price{
		ProductID: 35455,
		BrandID:   1,
		PriceList: 2,
		StartDate: time.Date(2020, 6, 14, 15, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2020, 6, 14, 18, 30, 0, 0, time.UTC),
		Priority:  1,
		Amount:    p.Amount,
		Currency:  "EUR",
	}, p)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("25.45")))

	dot, err := recordToPrice(row("1;2020-06-14-00.00.00;2020-06-14-00.00.00;1;35455;0;35.50;EUR"))
	require.NoError(t, err)
	assert.True(t, dot.Amount.Equal(decimal.RequireFromString("35.5")))

	fine, err := recordToPrice(row("1;2020-06-14-00.00.00;2020-06-14-00.00.00;1;35455;0;25,456;EUR"))
	require.NoError(t, err)
	assert.Equal(t, "25.456", fine.Amount.String(), "sub-cent amounts keep every digit")

	bad := []struct {
		name string
		rec  string
		want string
	}{
		{"zero brand", "0;2020-06-14-00.00.00;2020-12-31-23.59.59;1;35455;0;1;EUR", "BRAND_ID"},
		{"bad start", "1;2020-06-14;2020-12-31-23.59.59;1;35455;0;1;EUR", "START_DATE"},
		{"bad end", "1;2020-06-14-00.00.00;soon;1;35455;0;1;EUR", "END_DATE"},
		{"inverted window", "1;2020-12-31-23.59.59;2020-06-14-00.00.00;1;35455;0;1;EUR", "before START_DATE"},
		{"bad price list", "1;2020-06-14-00.00.00;2020-12-31-23.59.59;x;35455;0;1;EUR", "PRICE_LIST"},
		{"negative product", "1;2020-06-14-00.00.00;2020-12-31-23.59.59;1;-5;0;1;EUR", "PRODUCT_ID"},
		{"negative priority", "1;2020-06-14-00.00.00;2020-12-31-23.59.59;1;35455;-1;1;EUR", "PRIORITY"},
		{"negative price", "1;2020-06-14-00.00.00;2020-12-31-23.59.59;1;35455;0;-1,00;EUR", "PRICE"},
		{"bad currency", "1;2020-06-14-00.00.00;2020-12-31-23.59.59;1;35455;0;1;EURO", "CURR"},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			_, err := recordToPrice(row(tc.rec))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseFile_ReferenceTariffs(t *testing.T) {
	prices, err := ParseFile(filepath.Join("..", "..", "data", "prices", "reference_tariffs.csv"))
	require.NoError(t, err)
	require.Len(t, prices, 4)

	assert.Equal(t, int64(4), prices[3].PriceList)
	assert.True(t, prices[3].Amount.Equal(decimal.RequireFromString("38.95")))
	assert.Equal(t, time.Date(2020, 6, 15, 16, 0, 0, 0, time.UTC), prices[3].StartDate)
}

func TestParseFile_Errors(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)

	path := writeTempFile(t, t.TempDir(), "broken.csv", tariffHeader+"1;2;3\n")
	_, err = ParseFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.csv")
}
