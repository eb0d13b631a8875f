package parser

import (
	"path/filepath"
	"strings"
)

// Language is the language tag used to select a grammar and a front-end adapter.
type Language int

const (
	// LanguagePython represents Python (.py, .pyi files)
	LanguagePython Language = iota
	// LanguageTypeScript represents TypeScript (.ts, .tsx files)
	LanguageTypeScript
	// LanguageJavaScript represents JavaScript (.js, .jsx files)
	LanguageJavaScript
	// LanguageGo represents Go (.go files)
	LanguageGo
	// LanguageUnknown represents an unsupported language
	LanguageUnknown
)

// String returns the language tag.
func (l Language) String() string {
	switch l {
	case LanguagePython:
		return "python"
	case LanguageTypeScript:
		return "typescript"
	case LanguageJavaScript:
		return "javascript"
	case LanguageGo:
		return "go"
	default:
		return "unknown"
	}
}

// MarshalText encodes the language as its tag so symbols serialize readably.
func (l Language) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a language tag. Unrecognized tags decode to LanguageUnknown.
func (l *Language) UnmarshalText(text []byte) error {
	*l = ParseLanguageString(string(text))
	return nil
}

// DetectLanguage detects the language from a file path.
// Returns LanguageUnknown if the file extension is not recognized.
func DetectLanguage(filePath string) Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".py", ".pyi":
		return LanguagePython
	case ".ts", ".mts", ".cts", ".tsx":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	case ".go":
		return LanguageGo
	default:
		return LanguageUnknown
	}
}

// IsTSXFile checks if a file path represents a TSX file.
// TSX files use the TypeScript grammar with JSX support enabled.
func IsTSXFile(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".tsx"
}

// ParseLanguageString converts a language tag or common alias to a Language.
// Returns LanguageUnknown if the string is not recognized.
func ParseLanguageString(lang string) Language {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "python", "py":
		return LanguagePython
	case "typescript", "ts", "tsx":
		return LanguageTypeScript
	case "javascript", "js", "jsx":
		return LanguageJavaScript
	case "go", "golang":
		return LanguageGo
	default:
		return LanguageUnknown
	}
}

// SupportedLanguages returns a list of all supported languages.
func SupportedLanguages() []Language {
	return []Language{
		LanguagePython,
		LanguageTypeScript,
		LanguageJavaScript,
		LanguageGo,
	}
}

// SupportedExtensions returns the file extensions recognized by DetectLanguage,
// used to build default scan include patterns.
func SupportedExtensions() []string {
	return []string{".py", ".pyi", ".ts", ".mts", ".cts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".go"}
}
