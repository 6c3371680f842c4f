package mailbox

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ScanResult summarizes a corpus scan.
type ScanResult struct {
	FilesFound  int
	FilesParsed int
	FilesFailed int
}

// Scanner reads every .eml file under a directory with a bounded
// worker pool. Unparseable files are counted and skipped.
type Scanner struct {
	Workers int // parallel parse workers; 0 means 8
}

// Scan parses the corpus directory and returns documents ordered by
// source filename so the result is deterministic regardless of worker
// scheduling.
func (s *Scanner) Scan(ctx context.Context, dir string) ([]EmailDocument, ScanResult, error) {
	workers := s.Workers
	if workers <= 0 {
		workers = 8
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.eml"))
	if err != nil {
		return nil, ScanResult{}, err
	}

	result := ScanResult{FilesFound: len(files)}

	var mu sync.Mutex
	var docs []EmailDocument

	sem := semaphore.NewWeighted(int64(workers))
	g, ctx := errgroup.WithContext(ctx)

	for _, file := range files {
		file := file
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			doc, err := ParseFile(file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.FilesFailed++
				return nil // a bad file never aborts the scan
			}
			result.FilesParsed++
			docs = append(docs, doc)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, result, err
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].SourceFile < docs[j].SourceFile
	})
	return docs, result, ctx.Err()
}
