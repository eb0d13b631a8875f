package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/symdex/pkg/config"
	"github.com/gnana997/symdex/pkg/parser"
)

// serverName is the key symdex is registered under in MCP client configs.
const serverName = "symdex"

// mcpClient is a project-scoped MCP client config file under the
// workspace root.
type mcpClient struct {
	name       string
	configPath string   // relative to the root
	serversKey string   // "servers" (VS Code) or "mcpServers"
	marker     string   // directory whose presence selects the client; empty means always
	extra      []string // key, value pairs added to the entry
}

var mcpClients = []mcpClient{
	{name: "claude", configPath: ".mcp.json", serversKey: "mcpServers"},
	{name: "vscode", configPath: filepath.Join(".vscode", "mcp.json"), serversKey: "servers", marker: ".vscode", extra: []string{"type", "stdio"}},
	{name: "cursor", configPath: filepath.Join(".cursor", "mcp.json"), serversKey: "mcpServers", marker: ".cursor"},
}

// Replaceable for testing.
var executableFunc = os.Executable

type setupOptions struct {
	clients []string
	index   bool
	force   bool
	dryRun  bool
}

func newSetupCmd(a *app) *cobra.Command {
	var opts setupOptions
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register this workspace's symdex server with MCP clients",
		Long: `Setup prepares the workspace for AI agents. It writes .symdex/config.yaml
if missing and registers "symdex serve --root <root> --watch" in the
project-scoped MCP config of each client:

  claude   .mcp.json            (always)
  vscode   .vscode/mcp.json     (when .vscode/ exists)
  cursor   .cursor/mcp.json     (when .cursor/ exists)

An existing symdex entry that points elsewhere is left alone unless
--force is given.

Examples:
  symdex setup
  symdex setup --client vscode --index
  symdex -C ../api setup --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd, a, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.clients, "client", nil, "clients to configure (claude, vscode, cursor); default: detected")
	cmd.Flags().BoolVar(&opts.index, "index", false, "index the workspace once configured")
	cmd.Flags().BoolVar(&opts.force, "force", false, "replace a symdex entry with different settings")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report what would change without writing")
	return cmd
}

func runSetup(cmd *cobra.Command, a *app, opts setupOptions) error {
	w := cmd.OutOrStdout()

	clients, err := selectClients(a.rootDir, opts.clients)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Workspace: %s\n", a.rootDir)
	fmt.Fprintf(w, "Index:     %s\n", a.cfg.DatabasePath(a.rootDir))
	fmt.Fprintf(w, "Languages: %s\n", strings.Join(indexedLanguages(a.cfg), ", "))

	if err := ensureConfig(w, a, opts.dryRun); err != nil {
		return err
	}

	entry := serverEntry(a.rootDir)
	for _, c := range clients {
		action, err := registerServer(filepath.Join(a.rootDir, c.configPath), c, entry, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		fmt.Fprintf(w, "  %-7s %s: %s\n", c.name, c.configPath, action)
	}

	if opts.index && !opts.dryRun {
		return runIndex(cmd, a, indexOptions{})
	}
	return nil
}

// selectClients resolves --client names, or detects clients by marker
// directory when none are given.
func selectClients(root string, names []string) ([]mcpClient, error) {
	if len(names) == 0 {
		var out []mcpClient
		for _, c := range mcpClients {
			if c.marker == "" {
				out = append(out, c)
				continue
			}
			if info, err := os.Stat(filepath.Join(root, c.marker)); err == nil && info.IsDir() {
				out = append(out, c)
			}
		}
		return out, nil
	}

	var out []mcpClient
	for _, c := range mcpClients {
		if slices.Contains(names, c.name) {
			out = append(out, c)
		}
	}
	for _, name := range names {
		if !slices.ContainsFunc(mcpClients, func(c mcpClient) bool { return c.name == name }) {
			return nil, fmt.Errorf("unknown client %q (want claude, vscode or cursor)", name)
		}
	}
	return out, nil
}

// indexedLanguages lists the languages the include patterns select.
func indexedLanguages(cfg *config.Config) []string {
	selected := make(map[parser.Language]bool)
	for _, pattern := range cfg.Paths.Include {
		selected[parser.DetectLanguage(pattern)] = true
	}
	var out []string
	for _, lang := range parser.SupportedLanguages() {
		if selected[lang] {
			out = append(out, lang.String())
		}
	}
	if len(out) == 0 {
		return []string{"none"}
	}
	return out
}

func ensureConfig(w io.Writer, a *app, dryRun bool) error {
	path := filepath.Join(a.rootDir, config.Dir, config.FileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if dryRun {
		fmt.Fprintf(w, "Would write %s\n", path)
		return nil
	}
	written, err := config.Save(a.rootDir, config.Default())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s\n", written)
	return nil
}

// serverEntry is the MCP stdio entry serving root with live re-indexing.
// The command is this binary's absolute path so clients need no PATH setup.
func serverEntry(root string) map[string]any {
	command := serverName
	if exe, err := executableFunc(); err == nil {
		command = exe
	}
	return map[string]any{
		"command": command,
		"args":    []any{"serve", "--root", root, "--watch"},
	}
}

// registerServer upserts the symdex entry in one client config and
// returns what it did.
func registerServer(path string, c mcpClient, entry map[string]any, opts setupOptions) (string, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	want := make(map[string]any, len(entry)+len(c.extra)/2)
	for k, v := range entry {
		want[k] = v
	}
	for i := 0; i+1 < len(c.extra); i += 2 {
		want[c.extra[i]] = c.extra[i+1]
	}

	merged, action, err := upsertServer(existing, c.serversKey, want, opts.force)
	if err != nil {
		return "", err
	}
	if merged == nil {
		return action, nil
	}
	if opts.dryRun {
		return "would be " + action, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	return action, os.WriteFile(path, merged, 0o644)
}

// upsertServer sets the symdex entry under serversKey in a JSON document,
// keeping every other key. It returns nil bytes when nothing changes.
func upsertServer(existing []byte, serversKey string, want map[string]any, force bool) ([]byte, string, error) {
	doc := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &doc); err != nil {
			return nil, "", fmt.Errorf("invalid JSON: %w", err)
		}
	}

	servers, ok := doc[serversKey].(map[string]any)
	if !ok {
		servers = make(map[string]any)
	}

	action := "added"
	if current, exists := servers[serverName]; exists {
		if reflect.DeepEqual(current, normalizeJSON(want)) {
			return nil, "up to date", nil
		}
		if !force {
			return nil, "has a different symdex entry (use --force to replace)", nil
		}
		action = "replaced"
	}

	servers[serverName] = want
	doc[serversKey] = servers

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return append(out, '\n'), action, nil
}

// normalizeJSON round-trips v so it compares equal to decoded JSON.
func normalizeJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
