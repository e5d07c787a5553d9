package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	apperrors "gradecli/internal/errors"
	"gradecli/pkg/contracts/domain"
)

const defaultDecodeWorkers = 8

// Record is one listed archive document together with its file facts.
type Record struct {
	ID       string
	Path     string
	ModTime  time.Time
	Document *domain.ArchiveDocument
}

// Listing is the result of a full archive scan. Records are newest first by
// file modification time.
type Listing struct {
	Records []Record
	Corrupt int
}

// Store persists archive documents as individual JSON files in one
// directory. Writes from one process are serialized; concurrent writers in
// separate processes are not coordinated.
type Store struct {
	dir     string
	logger  *slog.Logger
	now     func() time.Time
	workers int

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for keys and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithDecodeWorkers bounds how many documents ListAll decodes in parallel.
func WithDecodeWorkers(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewStore opens the archive directory, creating it if needed.
func NewStore(dir string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewStorageError("failed to create archive directory", err).WithContext("dir", dir)
	}
	s := &Store{
		dir:     dir,
		logger:  logger.With(slog.String("component", "archive")),
		now:     time.Now,
		workers: defaultDecodeWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the archive directory.
func (s *Store) Dir() string {
	return s.dir
}

// Write stores a scored table as a new document and returns its id.
func (s *Store) Write(ctx context.Context, contextName, title string, table *domain.ScoredTable, meta map[string]any) (string, error) {
	return s.WriteRows(ctx, contextName, title, table.Columns, table.Cells(), meta)
}

// WriteRows stores an arbitrary table as a new document and returns its id.
// Every row must have exactly one cell per column.
func (s *Store) WriteRows(ctx context.Context, contextName, title string, columns []string, rows [][]any, meta map[string]any) (string, error) {
	for i, r := range rows {
		if len(r) != len(columns) {
			return "", apperrors.NewValidationError(fmt.Sprintf("rows[%d]", i),
				fmt.Sprintf("has %d cells, want %d", len(r), len(columns)))
		}
	}
	if meta == nil {
		meta = map[string]any{}
	}

	now := s.now()
	doc := domain.ArchiveDocument{
		Schema:  domain.ArchiveSchemaVersion,
		Context: contextName,
		Title:   title,
		Created: now.Format("2006-01-02T15:04:05"),
		Meta:    sanitizeMap(meta),
		Columns: columns,
		Rows:    sanitizeRows(rows),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", apperrors.NewStorageError("failed to encode archive document", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.freeKey(now.Format(keyTimeFmt) + "_" + truncatedSlug(title))
	if err := writeAtomic(s.dir, id, buf.Bytes()); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "archive document written",
		slog.String("id", id),
		slog.String("context", contextName),
		slog.Int("rows", len(rows)))
	return id, nil
}

// freeKey appends -2, -3, ... when a document with the same key exists.
func (s *Store) freeKey(base string) string {
	id := base + docExt
	for n := 2; ; n++ {
		if _, err := os.Stat(filepath.Join(s.dir, id)); os.IsNotExist(err) {
			return id
		}
		id = fmt.Sprintf("%s-%d%s", base, n, docExt)
	}
}

// writeAtomic writes data to a temp file in dir and renames it into place.
func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*"+docExt)
	if err != nil {
		return apperrors.NewStorageError("failed to create temp file", err).WithContext("dir", dir)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return apperrors.NewStorageError("failed to write archive document", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return apperrors.NewStorageError("failed to sync archive document", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to close archive document", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to publish archive document", err).WithContext("id", name)
	}
	return nil
}

// Read returns one document decoded strictly.
func (s *Store) Read(ctx context.Context, id string) (*domain.ArchiveDocument, error) {
	path, err := s.pathFor(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, apperrors.NewNotFoundError("archive document " + id)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read archive document", err).WithContext("id", id)
	}

	var doc domain.ArchiveDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewCorruptDataError("archive document "+id, err)
	}
	return &doc, nil
}

// Delete removes a document. A missing document is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	path, err := s.pathFor(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperrors.NewStorageError("failed to delete archive document", err).WithContext("id", id)
	}
	s.logger.InfoContext(ctx, "archive document deleted", slog.String("id", id))
	return nil
}

// ListAll decodes every document in the archive. Unreadable or malformed
// files are skipped and counted; the scan itself never fails on them.
func (s *Store) ListAll(ctx context.Context) (*Listing, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list archive directory", err).WithContext("dir", s.dir)
	}

	var recs []Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, docExt) || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		recs = append(recs, Record{ID: name, Path: filepath.Join(s.dir, name), ModTime: info.ModTime()})
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].ModTime.Equal(recs[j].ModTime) {
			return recs[i].ID > recs[j].ID
		}
		return recs[i].ModTime.After(recs[j].ModTime)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range recs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(recs[i].Path)
			if err != nil {
				return nil
			}
			recs[i].Document = decodeLenient(data, strings.TrimSuffix(recs[i].ID, docExt))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	listing := &Listing{Records: make([]Record, 0, len(recs))}
	for _, r := range recs {
		if r.Document == nil {
			listing.Corrupt++
			s.logger.WarnContext(ctx, "skipping corrupt archive document", slog.String("id", r.ID))
			continue
		}
		listing.Records = append(listing.Records, r)
	}
	return listing, nil
}

// decodeLenient extracts the known fields of a document, tolerating wrongly
// typed members. It returns nil only when data is not a JSON object.
func decodeLenient(data []byte, stem string) *domain.ArchiveDocument {
	if !gjson.ValidBytes(data) {
		return nil
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil
	}

	doc := &domain.ArchiveDocument{
		Schema:  int(root.Get("schema").Int()),
		Context: root.Get("context").String(),
		Title:   stem,
		Created: root.Get("created").String(),
		Meta:    map[string]any{},
	}
	if t := root.Get("title"); t.Exists() && t.Type != gjson.Null {
		doc.Title = t.String()
	}
	if m := root.Get("meta"); m.IsObject() {
		if v, ok := m.Value().(map[string]any); ok {
			doc.Meta = v
		}
	}
	for _, c := range root.Get("columns").Array() {
		doc.Columns = append(doc.Columns, c.String())
	}
	for _, r := range root.Get("rows").Array() {
		if !r.IsArray() {
			continue
		}
		cells := r.Array()
		row := make([]any, len(cells))
		for i, c := range cells {
			row[i] = c.Value()
		}
		doc.Rows = append(doc.Rows, row)
	}
	return doc
}

func (s *Store) pathFor(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || strings.HasPrefix(id, ".") {
		return "", apperrors.NewValidationError("id", fmt.Sprintf("invalid archive id %q", id))
	}
	if !strings.HasSuffix(id, docExt) {
		id += docExt
	}
	return filepath.Join(s.dir, id), nil
}

// sanitizeRows replaces non-finite numbers, which JSON cannot carry, with
// null.
func sanitizeRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		line := make([]any, len(r))
		for j, v := range r {
			line[j] = sanitizeValue(v)
		}
		out[i] = line
	}
	return out
}

func sanitizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil
		}
	case *float64:
		if x == nil || math.IsNaN(*x) || math.IsInf(*x, 0) {
			return nil
		}
		return *x
	}
	return v
}
