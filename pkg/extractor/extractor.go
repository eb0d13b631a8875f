package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gnana997/symdex/pkg/frontend"
	"github.com/gnana997/symdex/pkg/parser"
	"github.com/gnana997/symdex/pkg/syntax"
	"github.com/google/uuid"
)

// Extractor runs the per-file pipeline: front end, symbol walk, scope
// resolution and annotation normalization.
//
// An Extractor holds no per-file state; Extract is safe to call from many
// goroutines at once.
//
// Usage:
//
//	ex := NewExtractor(frontend.New(parserManager, logger), logger)
//	result, err := ex.ExtractFile(ctx, "pkg/models.py", source)
//	if err != nil {
//	    return err
//	}
//	for _, sym := range result.Symbols { ... }
type Extractor struct {
	frontend *frontend.Frontend
	logger   *slog.Logger
	now      func() time.Time
}

// NewExtractor creates an extractor backed by fe.
func NewExtractor(fe *frontend.Frontend, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{frontend: fe, logger: logger, now: time.Now}
}

// ExtractFile detects the language from the file extension and extracts.
func (e *Extractor) ExtractFile(ctx context.Context, filePath string, source []byte) (*FileResult, error) {
	lang := parser.DetectLanguage(filePath)
	if lang == parser.LanguageUnknown {
		return nil, fmt.Errorf("unsupported language for file: %s", filePath)
	}
	return e.Extract(ctx, filePath, source, lang)
}

// Extract produces the symbols of one file.
//
// Errors:
//   - *syntax.ParseError when the source is malformed; only this file is affected
//   - *syntax.ContractError when the adapter produced an invalid tree
//
// Malformed decorators and type hints never fail extraction; they are
// flagged on the Annotation.
func (e *Extractor) Extract(ctx context.Context, filePath string, source []byte, lang parser.Language) (*FileResult, error) {
	root, err := e.frontend.Parse(ctx, source, lang, parser.IsTSXFile(filePath))
	if err != nil {
		var pe *syntax.ParseError
		if errors.As(err, &pe) {
			pe.File = filePath
			return nil, pe
		}
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	if err := syntax.Validate(root); err != nil {
		e.logger.Error("front-end adapter violated the syntax contract",
			"file", filePath, "language", lang.String(), "error", err)
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	w := &walker{file: filePath, lang: lang}
	w.module(root)

	if err := resolveScopes(w.out); err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	normalizeAnnotations(w.out)

	e.logger.Debug("extracted symbols",
		"file", filePath,
		"language", lang.String(),
		"symbols", len(w.out))

	return &FileResult{
		FilePath:    filePath,
		Language:    lang,
		PassID:      uuid.NewString(),
		ContentHash: ContentHash(source),
		ExtractedAt: e.now(),
		Symbols:     w.out,
	}, nil
}

// ContentHash returns the hex SHA-256 of source, used to skip unchanged files.
func ContentHash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}
