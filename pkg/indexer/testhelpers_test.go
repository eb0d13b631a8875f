package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnana997/symdex/pkg/extractor"
	"github.com/gnana997/symdex/pkg/frontend"
	"github.com/gnana997/symdex/pkg/parser"
	"github.com/gnana997/symdex/pkg/util"
)

const routesPy = `from flask import Flask

app = Flask(__name__)


@app.route("/users")
def list_users():
    return []


@app.route("/users/<int:id>", methods=["GET"])
async def get_user(id: int) -> dict:
    return {}


class UserService:
    @staticmethod
    def build():
        return UserService()

    def save(self):
        pass

    def save(self, force=False):
        pass
`

const modelsPy = `class User:
    def save(self):
        pass


class Order:
    class Line:
        pass
`

func newTestExtractor(t *testing.T) *extractor.Extractor {
	t.Helper()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	pm := parser.NewParserManagerWithPoolSize(logger, 4)
	t.Cleanup(func() { pm.Close() })
	return extractor.NewExtractor(frontend.New(pm, logger), logger)
}

func newTestIndexer(t *testing.T) *SymbolIndexer {
	t.Helper()
	idx := NewSymbolIndexer(DefaultSymbolIndexerConfig(), util.NewLogger(util.DefaultLoggerConfig()))
	t.Cleanup(idx.Close)
	return idx
}

func extract(t *testing.T, ex *extractor.Extractor, key, source string) *extractor.FileResult {
	t.Helper()
	result, err := ex.ExtractFile(context.Background(), key, []byte(source))
	require.NoError(t, err)
	return result
}

func paths(syms []*extractor.Symbol) []string {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = s.Path()
	}
	return out
}
