// Package store persists the symbol index to SQLite so that queries can be
// answered without re-extracting the workspace.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/gnana997/symdex/pkg/extractor"
	"github.com/gnana997/symdex/pkg/parser"
	"github.com/gnana997/symdex/pkg/syntax"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store handles persistence of indexed files and symbols.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens the index database at dbPath, creating parent
// directories as needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serialises writers and keeps pragmas in effect.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the path to the database file.
func (s *Store) DBPath() string {
	return s.dbPath
}

// FileInfo describes one indexed file.
type FileInfo struct {
	FileKey     string          `json:"file_key"`
	Language    parser.Language `json:"language"`
	PassID      string          `json:"pass_id"`
	ContentHash string          `json:"content_hash"`
	ExtractedAt time.Time       `json:"extracted_at"`
	Symbols     int             `json:"symbols"`
}

// ReplaceFile stores one extraction pass, replacing any earlier pass for
// the same file. The replacement is a single transaction.
func (s *Store) ReplaceFile(ctx context.Context, result *extractor.FileResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := sq.Delete("files").
		Where(sq.Eq{"file_key": result.FilePath}).
		RunWith(tx).
		ExecContext(ctx); err != nil {
		return fmt.Errorf("deleting previous pass: %w", err)
	}

	if _, err := sq.Insert("files").
		Columns("file_key", "language", "pass_id", "content_hash", "extracted_at").
		Values(result.FilePath, result.Language.String(), result.PassID, result.ContentHash,
			result.ExtractedAt.UnixNano()).
		RunWith(tx).
		ExecContext(ctx); err != nil {
		return fmt.Errorf("inserting file: %w", err)
	}

	symStmt, err := prepareInsert(ctx, tx, "symbols",
		"id", "file_key", "ordinal", "key", "path", "qualified_path", "name", "alias", "kind", "parent_id",
		"language", "shadowed", "is_async", "start_line", "start_column", "end_line", "end_column",
		"start_byte", "end_byte", "bases_json", "decorators_json", "parameters_json", "return_json")
	if err != nil {
		return fmt.Errorf("preparing symbol insert: %w", err)
	}
	defer symStmt.Close()

	decStmt, err := prepareInsert(ctx, tx, "decorators", "symbol_id", "name", "position")
	if err != nil {
		return fmt.Errorf("preparing decorator insert: %w", err)
	}
	defer decStmt.Close()

	for i, sym := range result.Symbols {
		qpath, err := json.Marshal(sym.QualifiedPath)
		if err != nil {
			return fmt.Errorf("encoding path: %w", err)
		}
		bases, err := marshalOptional(sym.Bases, len(sym.Bases) == 0)
		if err != nil {
			return err
		}
		decorators, err := marshalOptional(sym.Decorators, len(sym.Decorators) == 0)
		if err != nil {
			return err
		}
		params, err := marshalOptional(sym.Parameters, len(sym.Parameters) == 0)
		if err != nil {
			return err
		}
		ret, err := marshalOptional(sym.ReturnAnnotation, sym.ReturnAnnotation == nil)
		if err != nil {
			return err
		}

		_, err = symStmt.ExecContext(ctx,
			sym.ID, result.FilePath, i, sym.Key(), sym.Path(), string(qpath), sym.Name, nullString(sym.Alias),
			string(sym.Kind), nullString(sym.ParentID), sym.Language.String(),
			sym.Shadowed, sym.IsAsync,
			sym.Span.StartLine, sym.Span.StartColumn, sym.Span.EndLine, sym.Span.EndColumn,
			sym.Span.StartByte, sym.Span.EndByte,
			bases, decorators, params, ret)
		if err != nil {
			return fmt.Errorf("inserting symbol %s: %w", sym.Key(), err)
		}

		for pos, d := range sym.Decorators {
			if d.Name == "" {
				continue
			}
			if _, err := decStmt.ExecContext(ctx, sym.ID, d.Name, pos); err != nil {
				return fmt.Errorf("inserting decorator %s: %w", d.Name, err)
			}
		}
	}

	if _, err := sq.Insert("metadata").
		Columns("key", "value").
		Values("indexed_at", strconv.FormatInt(time.Now().UnixNano(), 10)).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		RunWith(tx).
		ExecContext(ctx); err != nil {
		return fmt.Errorf("updating metadata: %w", err)
	}

	return tx.Commit()
}

// prepareInsert prepares a single-row insert into table.
func prepareInsert(ctx context.Context, tx *sql.Tx, table string, columns ...string) (*sql.Stmt, error) {
	placeholders := make([]any, len(columns))
	for i := range placeholders {
		placeholders[i] = sq.Expr("?")
	}
	query, _, err := sq.Insert(table).Columns(columns...).Values(placeholders...).ToSql()
	if err != nil {
		return nil, err
	}
	return tx.PrepareContext(ctx, query)
}

// RemoveFile deletes a file and its symbols. It reports whether the file
// was stored.
func (s *Store) RemoveFile(ctx context.Context, fileKey string) (bool, error) {
	res, err := sq.Delete("files").
		Where(sq.Eq{"file_key": fileKey}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("deleting file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var symbolColumns = []string{
	"s.id", "s.file_key", "s.name", "s.alias", "s.kind", "s.parent_id", "s.language", "s.qualified_path",
	"s.shadowed", "s.is_async", "s.start_line", "s.start_column", "s.end_line", "s.end_column",
	"s.start_byte", "s.end_byte", "s.bases_json", "s.decorators_json", "s.parameters_json", "s.return_json",
}

var fileColumns = []string{
	"f.file_key", "f.language", "f.pass_id", "f.content_hash", "f.extracted_at",
	"(SELECT COUNT(*) FROM symbols s WHERE s.file_key = f.file_key)",
}

func selectSymbols() sq.SelectBuilder {
	return sq.Select(symbolColumns...).From("symbols s")
}

// LookupByPath returns the visible declaration at a dotted path: the
// unshadowed one, from the most recently extracted file on a tie.
func (s *Store) LookupByPath(ctx context.Context, path string) (*extractor.Symbol, error) {
	row := selectSymbols().
		Join("files f ON f.file_key = s.file_key").
		Where(sq.Eq{"s.path": path}).
		OrderBy("s.shadowed ASC", "f.extracted_at DESC", "s.ordinal DESC").
		Limit(1).
		RunWith(s.db).
		QueryRowContext(ctx)
	sym, err := scanSymbol(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("symbol %s: %w", path, ErrNotFound)
	}
	return sym, err
}

// LookupByName returns every symbol with the simple name, ordered by file
// and position.
func (s *Store) LookupByName(ctx context.Context, name string) ([]*extractor.Symbol, error) {
	return s.querySymbols(ctx, selectSymbols().
		Where(sq.Eq{"s.name": name}).
		OrderBy("s.file_key", "s.ordinal"))
}

// LookupByDecorator returns every symbol carrying the decorator name.
func (s *Store) LookupByDecorator(ctx context.Context, name string) ([]*extractor.Symbol, error) {
	return s.querySymbols(ctx, selectSymbols().
		Distinct().
		Column("s.ordinal").
		Join("decorators d ON d.symbol_id = s.id").
		Where(sq.Eq{"d.name": strings.TrimPrefix(name, "@")}).
		OrderBy("s.file_key", "s.ordinal"))
}

// FileSymbols returns the stored pass for a file, symbols in declaration
// order.
func (s *Store) FileSymbols(ctx context.Context, fileKey string) (*extractor.FileResult, error) {
	info, err := s.fileInfo(ctx, fileKey)
	if err != nil {
		return nil, err
	}
	syms, err := s.querySymbols(ctx, selectSymbols().
		Where(sq.Eq{"s.file_key": fileKey}).
		OrderBy("s.ordinal"))
	if err != nil {
		return nil, err
	}
	return &extractor.FileResult{
		FilePath:    info.FileKey,
		Language:    info.Language,
		PassID:      info.PassID,
		ContentHash: info.ContentHash,
		ExtractedAt: info.ExtractedAt,
		Symbols:     syms,
	}, nil
}

// Files lists the stored files ordered by key.
func (s *Store) Files(ctx context.Context) ([]FileInfo, error) {
	rows, err := sq.Select(fileColumns...).
		From("files f").
		OrderBy("f.file_key").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var out []FileInfo
	for rows.Next() {
		info, err := scanFileInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

// LoadAll reads every stored pass, for warming an in-memory index.
func (s *Store) LoadAll(ctx context.Context) ([]*extractor.FileResult, error) {
	files, err := s.Files(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*extractor.FileResult, 0, len(files))
	for _, f := range files {
		result, err := s.FileSymbols(ctx, f.FileKey)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", f.FileKey, err)
		}
		out = append(out, result)
	}
	return out, nil
}

// Stats holds statistics about the stored index.
type Stats struct {
	FileCount      int       `json:"file_count"`
	SymbolCount    int       `json:"symbol_count"`
	DecoratorCount int       `json:"decorator_count"`
	IndexedAt      time.Time `json:"indexed_at"`
}

// GetStats returns statistics about the stored index.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query sq.SelectBuilder
		dest  *int
	}{
		{sq.Select("COUNT(*)").From("files"), &stats.FileCount},
		{sq.Select("COUNT(*)").From("symbols"), &stats.SymbolCount},
		{sq.Select("COUNT(DISTINCT name)").From("decorators"), &stats.DecoratorCount},
	}
	for _, c := range counts {
		if err := c.query.RunWith(s.db).QueryRowContext(ctx).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}

	var ts string
	err := sq.Select("value").
		From("metadata").
		Where(sq.Eq{"key": "indexed_at"}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&ts)
	switch {
	case err == nil:
		if n, perr := strconv.ParseInt(ts, 10, 64); perr == nil {
			stats.IndexedAt = time.Unix(0, n).UTC()
		}
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	return stats, nil
}

func (s *Store) fileInfo(ctx context.Context, fileKey string) (*FileInfo, error) {
	row := sq.Select(fileColumns...).
		From("files f").
		Where(sq.Eq{"f.file_key": fileKey}).
		RunWith(s.db).
		QueryRowContext(ctx)
	info, err := scanFileInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", fileKey, ErrNotFound)
	}
	return info, err
}

func (s *Store) querySymbols(ctx context.Context, query sq.SelectBuilder) ([]*extractor.Symbol, error) {
	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying symbols: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []*extractor.Symbol
	for rows.Next() {
		sym, err := scanSymbolRow(rows, len(cols))
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFileInfo(row scanner) (*FileInfo, error) {
	var (
		info      FileInfo
		lang      string
		extracted int64
	)
	if err := row.Scan(&info.FileKey, &lang, &info.PassID, &info.ContentHash, &extracted, &info.Symbols); err != nil {
		return nil, err
	}
	if err := info.Language.UnmarshalText([]byte(lang)); err != nil {
		return nil, fmt.Errorf("file %s: %w", info.FileKey, err)
	}
	info.ExtractedAt = time.Unix(0, extracted).UTC()
	return &info, nil
}

func scanSymbol(row scanner) (*extractor.Symbol, error) {
	return scanSymbolRow(row, len(symbolColumns))
}

// scanSymbolRow scans symbolColumns; extra trailing columns (used for
// ordering) are discarded.
func scanSymbolRow(row scanner, ncols int) (*extractor.Symbol, error) {
	var (
		sym                            extractor.Symbol
		alias, parentID                sql.NullString
		kind, lang, path               string
		bases, decorators, params, ret sql.NullString
		span                           syntax.Span
	)
	dest := []any{
		&sym.ID, &sym.FilePath, &sym.Name, &alias, &kind, &parentID, &lang, &path,
		&sym.Shadowed, &sym.IsAsync,
		&span.StartLine, &span.StartColumn, &span.EndLine, &span.EndColumn,
		&span.StartByte, &span.EndByte,
		&bases, &decorators, &params, &ret,
	}
	for len(dest) < ncols {
		var discard any
		dest = append(dest, &discard)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	sym.Alias = alias.String
	sym.ParentID = parentID.String
	sym.Kind = extractor.SymbolKind(kind)
	if err := json.Unmarshal([]byte(path), &sym.QualifiedPath); err != nil {
		return nil, fmt.Errorf("symbol %s: decoding path: %w", sym.ID, err)
	}
	sym.Span = span
	if err := sym.Language.UnmarshalText([]byte(lang)); err != nil {
		return nil, fmt.Errorf("symbol %s: %w", sym.ID, err)
	}

	if err := unmarshalOptional(bases, &sym.Bases); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(decorators, &sym.Decorators); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(params, &sym.Parameters); err != nil {
		return nil, err
	}
	if ret.Valid {
		sym.ReturnAnnotation = &extractor.Annotation{}
		if err := json.Unmarshal([]byte(ret.String), sym.ReturnAnnotation); err != nil {
			return nil, fmt.Errorf("decoding return annotation: %w", err)
		}
	}
	return &sym, nil
}

func marshalOptional(v any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalOptional(col sql.NullString, dest any) error {
	if !col.Valid {
		return nil
	}
	if err := json.Unmarshal([]byte(col.String), dest); err != nil {
		return fmt.Errorf("decoding column: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
