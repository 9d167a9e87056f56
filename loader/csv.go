// Package loader reads external row sources for the Load horizon (spec
// §4.8 Horizon::Load, §C14): CSV is the only supported format in v1. A
// blocking goroutine does the file IO and feeds decoded batches back
// through a bounded channel, the same split the storage scan leaves use
// to keep blocking work off the pulling goroutine.
package loader

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
)

// batchSize caps the row count one Batch carries.
const batchSize = 1024

// chanBuffer is the bounded channel capacity between the reading
// goroutine and CSVReader.Next's caller.
const chanBuffer = 4

// Batch is one decoded slice of CSV records, or a terminal error.
type Batch struct {
	Rows [][]string
	Err  error
}

// CSVReader streams one local CSV file in fixed-size batches.
type CSVReader struct {
	headers []string
	rows    chan Batch
	cancel  context.CancelFunc
	f       *os.File
}

// Path strips a file:// scheme, the only URL form Load supports (spec
// §C14 loader: local filesystem only, no network fetch).
func Path(url string) string {
	return strings.TrimPrefix(url, "file://")
}

// OpenCSV opens url and, if withHeaders, reads its header row before
// returning, so a caller can size its output schema immediately. The
// remaining rows are read by a background goroutine and delivered
// through Next.
func OpenCSV(url string, withHeaders bool) (*CSVReader, error) {
	f, err := os.Open(Path(url))
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(f)
	var headers []string
	if withHeaders {
		headers, err = r.Read()
		if err != nil && err != io.EOF {
			f.Close()
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := &CSVReader{headers: headers, rows: make(chan Batch, chanBuffer), cancel: cancel, f: f}
	go out.run(ctx, r)
	return out, nil
}

func (r *CSVReader) run(ctx context.Context, csvR *csv.Reader) {
	defer close(r.rows)
	defer r.f.Close()
	for {
		var batch [][]string
		for len(batch) < batchSize {
			rec, err := csvR.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				select {
				case r.rows <- Batch{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			batch = append(batch, rec)
		}
		if len(batch) == 0 {
			return
		}
		select {
		case r.rows <- Batch{Rows: batch}:
		case <-ctx.Done():
			return
		}
	}
}

// Headers is the parsed header row, or nil when the source has none.
func (r *CSVReader) Headers() []string { return r.headers }

// Next blocks until a batch is ready, the source is exhausted (ok ==
// false), or ctx is cancelled.
func (r *CSVReader) Next(ctx context.Context) (Batch, bool) {
	select {
	case b, ok := <-r.rows:
		return b, ok
	case <-ctx.Done():
		r.cancel()
		return Batch{Err: ctx.Err()}, true
	}
}

// Close stops the background goroutine if the caller abandons the
// reader before it reaches EOF.
func (r *CSVReader) Close() { r.cancel() }
