// Package loader streams parquet files into document batches.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/workflows/internal/domain/document"
)

const readBuffer = 1000

// BatchFunc receives each full batch. Returning an error stops the read.
type BatchFunc func(ctx context.Context, docs document.List) error

// Options control how rows become documents.
type Options struct {
	// IDColumn names the column copied into the document id. Empty leaves ids unset.
	IDColumn string
	// BatchSize is the number of documents handed to one BatchFunc call.
	BatchSize int
	// MaxRows stops after this many rows; zero reads everything.
	MaxRows int
}

// column maps a leaf column to its document path.
type column struct {
	path     string
	repeated bool
}

// Files returns the parquet files of dir in name order.
func Files(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("glob parquet files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no parquet files found in %s", dir)
	}
	slices.Sort(files)
	return files, nil
}

// ReadFiles streams every file through fn and returns the number of rows read.
func ReadFiles(ctx context.Context, files []string, opts Options, fn BatchFunc) (int, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	total := 0
	for _, f := range files {
		o := opts
		if opts.MaxRows > 0 {
			o.MaxRows = opts.MaxRows - total
			if o.MaxRows <= 0 {
				break
			}
		}
		n, err := ReadFile(ctx, f, o, fn)
		total += n
		if err != nil {
			return total, fmt.Errorf("read %s: %w", filepath.Base(f), err)
		}
	}
	return total, nil
}

// ReadFile streams one parquet file through fn in batches.
func ReadFile(ctx context.Context, path string, opts Options, fn BatchFunc) (int, error) {
	h, err := openParquet(path)
	if err != nil {
		return 0, err
	}
	defer h.Close()

	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	cols := resolveColumns(h.pf)
	batch := make(document.List, 0, opts.BatchSize)
	read := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(ctx, batch); err != nil {
			return err
		}
		batch = make(document.List, 0, opts.BatchSize)
		return nil
	}

	buf := make([]parquet.Row, readBuffer)
	for _, rg := range h.pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		for {
			if err := ctx.Err(); err != nil {
				return read, err
			}
			cnt, readErr := rows.ReadRows(buf)
			for i := range cnt {
				batch = append(batch, rowToDocument(buf[i], cols, opts.IDColumn))
				read++
				if len(batch) == opts.BatchSize {
					if err := flush(); err != nil {
						return read, err
					}
				}
				if opts.MaxRows > 0 && read >= opts.MaxRows {
					return read, flush()
				}
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return read, fmt.Errorf("read rows: %w", readErr)
			}
		}
	}
	return read, flush()
}

// resolveColumns maps leaf indexes to dotted paths. Repeated leaves
// (LIST columns) collapse onto their top-level name.
func resolveColumns(pf *parquet.File) []column {
	schema := pf.Schema()
	paths := schema.Columns()
	cols := make([]column, len(paths))
	for i, path := range paths {
		if len(path) == 0 {
			continue
		}
		leaf, ok := schema.Lookup(path...)
		if ok && leaf.MaxRepetitionLevel > 0 {
			cols[i] = column{path: path[0], repeated: true}
			continue
		}
		cols[i] = column{path: strings.Join(path, ".")}
	}
	return cols
}

// rowToDocument converts a generic parquet row. Null values are skipped.
func rowToDocument(row parquet.Row, cols []column, idColumn string) document.Document {
	doc := document.Document{}
	for _, v := range row {
		idx := v.Column()
		if idx < 0 || idx >= len(cols) || cols[idx].path == "" || v.IsNull() {
			continue
		}
		c := cols[idx]
		val := value(v)
		if c.repeated {
			list, _ := doc[c.path].([]any)
			doc[c.path] = append(list, val)
			continue
		}
		if err := doc.Set(c.path, val); err != nil {
			doc[c.path] = val
		}
	}
	if idColumn != "" {
		if id, ok := doc[idColumn]; ok {
			doc[document.IDField] = fmt.Sprint(id)
		}
	}
	return doc
}

func value(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return v.String()
	}
}

// parquetHandle wraps parquet.File + underlying os.File for proper cleanup.
type parquetHandle struct {
	pf   *parquet.File
	file *os.File
}

func (h *parquetHandle) Close() {
	_ = h.file.Close()
}

func openParquet(path string) (*parquetHandle, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	return &parquetHandle{pf: pf, file: f}, nil
}
