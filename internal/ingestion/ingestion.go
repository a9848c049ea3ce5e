package ingestion

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/guttosm/pricefinder/internal/logger"
	"github.com/guttosm/pricefinder/internal/storage"
)

const (
	fileExt          = ".csv"
	defaultBatchSize = 5000
	maxParallelFiles = 8
	cleanupTimeout   = 30 * time.Second
)

// repoCtor is an indirection for creating the repository; tests can override this.
var repoCtor = func(db *sql.DB) storage.PricesRepository {
	return storage.NewPricesRepository(db)
}

// ProcessDirectory loads every tariff file (*.csv) found in dir into the prices table.
//
//   - dir:      directory containing tariff files.
//   - db:       open *sql.DB (PostgreSQL).
//   - parallel: max files processed at once; <= 0 means min(8, NumCPU).
//   - force:    reload files already recorded in ingestion_log.
//
// Behavior:
//   - Files are identified by base name; a file already in ingestion_log is skipped
//     unless force is set.
//   - Rows previously stored under the file's name are deleted before it loads.
//   - Each file is parsed strictly and inserted in batches via the repository.
//     When a file fails, the batches it already committed are deleted again.
//   - If any file returns error, cancels the rest and returns that error.
func ProcessDirectory(ctx context.Context, dir string, db *sql.DB, parallel int, force bool) error {
	repo := repoCtor(db)
	log := logger.Component("ingestion")

	files, err := tariffFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no %s tariff files found in %s", fileExt, dir)
	}

	maxParallel := parallelism(parallel)
	log.Info().Int("files", len(files)).Str("dir", dir).Int("max_parallel", maxParallel).Msg("ingestion start")

	// errgroup will cancel siblings on first error.
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxParallel)

	for i, file := range files {
		idx := i
		f := file

		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			return g.Wait()
		}

		g.Go(func() error {
			defer func() { <-sem }()
			start := time.Now()
			base := filepath.Base(f)
			flog := log.With().Int("idx", idx+1).Int("total", len(files)).Str("file", base).Logger()
			flog.Info().Msg("file start")

			exists, err := repo.HasIngestionForFile(gctx, base)
			if err != nil {
				flog.Error().Err(err).Msg("check ingestion log failed")
				return fmt.Errorf("file %s: check ingestion log: %w", f, err)
			}
			if exists && !force {
				flog.Info().Bool("skipped", true).Msg("already ingested")
				return nil
			}

			// Unlogged rows under this name come from a run that failed midway.
			if err := repo.DeletePricesBySource(gctx, base); err != nil {
				flog.Error().Err(err).Msg("delete existing failed")
				return fmt.Errorf("file %s: delete existing: %w", f, err)
			}

			total, err := parseAndPersistFile(gctx, f, base, repo, defaultBatchSize)
			if err != nil {
				flog.Error().Dur("elapsed", time.Since(start)).Err(err).Msg("file failed")
				discardPartial(gctx, repo, base, flog)
				return fmt.Errorf("file %s: %w", f, err)
			}
			if err := repo.UpsertIngestionLog(gctx, base, total); err != nil {
				flog.Error().Err(err).Msg("update ingestion log failed")
				discardPartial(gctx, repo, base, flog)
				return fmt.Errorf("file %s: upsert ingestion log: %w", f, err)
			}
			flog.Info().Int("rows", total).Dur("elapsed", time.Since(start)).Bool("force", force).Msg("file done")
			return nil
		})
	}

	return g.Wait()
}

// discardPartial removes the rows a failed file committed before failing or
// before its ingestion_log entry could be written.
// It runs even when ctx is canceled, since a sibling failure cancels ctx.
func discardPartial(ctx context.Context, repo storage.PricesRepository, source string, log zerolog.Logger) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := repo.DeletePricesBySource(cleanupCtx, source); err != nil {
		log.Error().Err(err).Msg("discard partial rows failed")
		return
	}
	log.Warn().Msg("partial rows discarded")
}

// tariffFiles lists the tariff files in dir, sorted by name.
func tariffFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), fileExt) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// parallelism clamps the requested worker count to 1..maxParallelFiles.
func parallelism(requested int) int {
	if requested > 0 {
		return min(requested, maxParallelFiles)
	}
	return max(1, min(maxParallelFiles, runtime.NumCPU()))
}
