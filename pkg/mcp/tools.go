package mcp

import "github.com/mark3labs/mcp-go/mcp"

const (
	defaultLimit = 50
	maxLimit     = 500
)

func lookupByPathTool() mcp.Tool {
	return mcp.NewTool("lookup_by_path",
		mcp.WithDescription(`Resolve a dotted qualified path to its symbol.

The path starts with the module name derived from the file path, e.g.
"app.models.User.save" for method save of class User in app/models.py.
When several declarations share the path the last one wins; pass all=true
to get every declaration, shadowed ones included.`),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Dotted qualified path, e.g. 'app.models.User.save'")),
		mcp.WithBoolean("all",
			mcp.Description("Return every declaration with this path (default: false)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
}

func lookupByNameTool() mcp.Tool {
	return mcp.NewTool("lookup_by_name",
		mcp.WithDescription("Find all symbols with the given simple name across the index."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Simple (unqualified) name, e.g. 'save'")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (1-500, default: 50)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
}

func lookupByDecoratorTool() mcp.Tool {
	return mcp.NewTool("lookup_by_decorator",
		mcp.WithDescription(`Find all symbols carrying a decorator.

The decorator is matched by its exact dotted name as written, without call
arguments: "app.route", "property", "functools.lru_cache".`),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Decorator name; a leading '@' is ignored")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (1-500, default: 50)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
}

func searchSymbolsTool() mcp.Tool {
	return mcp.NewTool("search_symbols",
		mcp.WithDescription(`Glob search over qualified paths.

Segments are separated by '.', so '*' matches one segment and '**' any
number: "app.**.save", "*.models.User.*". A pattern without a dot is
matched against simple names: "test_*".`),
		mcp.WithString("pattern",
			mcp.Required(),
			mcp.Description("Glob pattern over dotted paths or simple names")),
		mcp.WithString("kind",
			mcp.Description("Optional kind filter: module, class, nested_class, function, method, lambda")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (1-500, default: 50)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
}

func getFileSymbolsTool() mcp.Tool {
	return mcp.NewTool("get_file_symbols",
		mcp.WithDescription("Return every symbol of one file in declaration order, with pass metadata."),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File key relative to the workspace root, e.g. 'app/models.py'")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
}

func getSymbolSourceTool() mcp.Tool {
	return mcp.NewTool("get_symbol_source",
		mcp.WithDescription("Return the source text of a symbol's declaration, decorators excluded. Pass either id or path."),
		mcp.WithString("id",
			mcp.Description("Symbol ID as returned by the other tools")),
		mcp.WithString("path",
			mcp.Description("Dotted qualified path (last declaration wins)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
}

func indexStatsTool() mcp.Tool {
	return mcp.NewTool("index_stats",
		mcp.WithDescription("Counts of indexed files, symbols, paths and decorators, with cache metrics."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
}
