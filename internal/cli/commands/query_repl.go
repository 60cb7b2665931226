package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapdesk/internal/cli/output"
	"github.com/leapstack-labs/leapdesk/internal/workspace"
	"github.com/leapstack-labs/leapdesk/pkg/core"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "leapdesk> "
	replContPrompt = "     ...> "
	historyFile    = "history"
)

// NewOpenCommand creates the open command.
func NewOpenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open [connection]",
		Short: "Open an interactive query workspace",
		Long: `Open an interactive workspace on a database.

Type SQL ending with a semicolon to run it. Start a line with "?" to have
the request translated into SQL, then use .run to execute the draft.
Type .help for all commands.

When standard input is not a terminal, lines are read from it as a script.`,
		Example: `  leapdesk open db.internal:5432/sales
  printf 'SELECT 1;\n' | leapdesk open duckdb://`,
		Args: cobra.MaximumNArgs(1),
		RunE: runOpen,
	}
}

func runOpen(cmd *cobra.Command, args []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	ws, err := cc.Session.OpenWorkspace(ctx, firstArg(args))
	if err != nil {
		return err
	}
	defer func() { _ = cc.Session.CloseWorkspace(ws) }()

	rp := &repl{ws: ws, r: cc.Renderer, errW: cmd.ErrOrStderr()}
	if err := ws.WaitIdle(ctx); err != nil {
		return err
	}
	if err := ws.State().CatalogErr; err != nil {
		cc.Renderer.Warning("could not load tables: " + err.Error())
	}

	if !output.IsTerminal(cmd.InOrStdin()) {
		return rp.runScript(ctx, cmd.InOrStdin())
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(cc.Cfg.DataDir, historyFile),
		AutoComplete:    newTableCompleter(ws.State().Catalog),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	conn := ws.State().Connection
	cc.Renderer.Printf("LeapDesk workspace (%s)\n", conn.Name)
	cc.Renderer.Println("Type .help for commands, .quit to exit")
	cc.Renderer.Println()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			rp.pending.Reset()
			_ = ws.CancelGeneration()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if rp.handle(ctx, line) {
			return nil
		}
		if rp.pending.Len() > 0 {
			rl.SetPrompt(replContPrompt)
		} else {
			rl.SetPrompt(replPrompt)
		}
	}
}

// repl interprets workspace commands line by line.
type repl struct {
	ws      *workspace.Workspace
	r       *output.Renderer
	errW    io.Writer
	pending strings.Builder
}

func (rp *repl) runScript(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if rp.handle(ctx, scanner.Text()) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if rest := strings.TrimSpace(rp.pending.String()); rest != "" {
		rp.pending.Reset()
		rp.report(rp.runSQL(ctx, rest))
	}
	return nil
}

// handle processes one input line and reports whether the session should end.
func (rp *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if rp.pending.Len() == 0 {
		switch {
		case strings.HasPrefix(line, "."):
			return rp.dotCommand(ctx, line)
		case strings.HasPrefix(line, "?"):
			rp.report(rp.ask(ctx, strings.TrimSpace(strings.TrimPrefix(line, "?"))))
			return false
		}
	}

	// Accumulate multi-line SQL until semicolon
	rp.pending.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		rp.pending.WriteString("\n")
		return false
	}
	query := strings.TrimSuffix(rp.pending.String(), ";")
	rp.pending.Reset()
	rp.report(rp.runSQL(ctx, query))
	return false
}

func (rp *repl) report(err error) {
	if err != nil {
		rp.r.Error(err.Error())
	}
}

func (rp *repl) dotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	arg := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(rp.r.Writer())

	case ".tables":
		rp.report(renderCatalog(rp.r, core.UserSchemas(rp.ws.State().Catalog), false))

	case ".schema":
		if arg == "" {
			rp.report(renderCatalog(rp.r, core.UserSchemas(rp.ws.State().Catalog), true))
			break
		}
		s, t, err := findTable(rp.ws.State().Catalog, arg)
		if err != nil {
			rp.report(err)
			break
		}
		rp.report(renderCatalog(rp.r, []core.Schema{{Name: s.Name, Tables: []core.Table{t}}}, true))

	case ".view":
		if arg == "" {
			_, _ = fmt.Fprintln(rp.errW, "Usage: .view <schema.table>")
			break
		}
		rp.report(rp.view(ctx, arg))

	case ".ask":
		rp.report(rp.ask(ctx, arg))

	case ".run":
		rp.report(runDraft(ctx, rp.ws, rp.r))

	case ".sql":
		if arg != "" {
			rp.report(rp.ws.SetSQL(arg))
			break
		}
		if sql := rp.ws.State().SQL; sql != "" {
			rp.r.Println(rp.r.Styles().SQL.Render(sql))
		} else {
			rp.r.Muted("(no draft)")
		}

	case ".reload":
		if err := rp.ws.ReloadCatalog(); err != nil {
			rp.report(err)
			break
		}
		rp.report(rp.ws.WaitIdle(ctx))
		if err := rp.ws.State().CatalogErr; err != nil {
			rp.report(err)
			break
		}
		rp.r.Success(fmt.Sprintf("Loaded %d schemas", len(rp.ws.State().Catalog)))

	case ".clear":
		rp.r.Printf("\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(rp.errW, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func (rp *repl) ask(ctx context.Context, intent string) error {
	if intent == "" {
		return workspace.ErrEmptyInput
	}
	w := io.Discard
	if rp.r.EffectiveMode() == output.ModeText {
		w = rp.r.Writer()
	}
	sqlText, err := generateSQL(ctx, rp.ws, intent, w)
	if err != nil {
		return err
	}
	if w == io.Discard {
		rp.r.Println(sqlText)
	}
	return nil
}

func (rp *repl) runSQL(ctx context.Context, query string) error {
	if err := rp.ws.RunQuery(strings.TrimSpace(query)); err != nil {
		return err
	}
	return rp.wait(ctx)
}

func (rp *repl) view(ctx context.Context, ref string) error {
	s, t, err := findTable(rp.ws.State().Catalog, ref)
	if err != nil {
		return err
	}
	if err := rp.ws.ViewTable(s.Name, t.Name); err != nil {
		return err
	}
	err = rp.wait(ctx)
	_ = rp.ws.SetMode(workspace.ModeQuery)
	return err
}

func (rp *repl) wait(ctx context.Context) error {
	if err := rp.ws.WaitIdle(ctx); err != nil {
		return err
	}
	st := rp.ws.State()
	if st.Err != nil {
		return st.Err
	}
	return rp.r.Result(st.Result)
}

// REPLCommand is one dot-command of the open REPL.
type REPLCommand struct {
	Name    string
	Aliases []string
	Args    string
	Help    string
	// Tables marks commands that take a table name.
	Tables bool
}

// REPLCommands lists the dot-commands in help order.
var REPLCommands = []REPLCommand{
	{Name: ".help", Help: "Show this help message"},
	{Name: ".tables", Help: "List tables"},
	{Name: ".schema", Args: "[table]", Help: "Show columns of one or all tables", Tables: true},
	{Name: ".view", Args: "<table>", Help: "Show the first rows of a table", Tables: true},
	{Name: ".ask", Args: "<request>", Help: `Translate a request into SQL (same as "? <request>")`},
	{Name: ".run", Help: "Execute the draft SQL"},
	{Name: ".sql", Args: "[SQL]", Help: "Show or replace the draft SQL"},
	{Name: ".reload", Help: "Reload tables from the database"},
	{Name: ".clear", Help: "Clear the screen"},
	{Name: ".quit", Aliases: []string{".exit"}, Help: "Exit"},
}

// REPLTips are shown under the dot-commands in help.
var REPLTips = []string{
	"SQL statements must end with a semicolon (;)",
	"Ctrl-C cancels a running generation",
	"Tab completion works for table names",
}

// Synopsis renders the command as typed, e.g. ".quit / .exit" or ".view <table>".
func (c REPLCommand) Synopsis() string {
	names := strings.Join(append([]string{c.Name}, c.Aliases...), " / ")
	if c.Args == "" {
		return names
	}
	return names + " " + c.Args
}

func printREPLHelp(w io.Writer) {
	var b strings.Builder
	b.WriteString("\nCommands:\n")
	for _, c := range REPLCommands {
		fmt.Fprintf(&b, "  %-19s %s\n", c.Synopsis(), c.Help)
	}
	b.WriteString("\nTips:\n")
	for _, tip := range REPLTips {
		b.WriteString("  - " + tip + "\n")
	}
	_, _ = fmt.Fprintln(w, b.String())
}

// newTableCompleter creates a readline completer for table names.
func newTableCompleter(schemas []core.Schema) *readline.PrefixCompleter {
	var tables []readline.PrefixCompleterInterface
	for _, s := range core.UserSchemas(schemas) {
		for _, t := range s.Tables {
			tables = append(tables, readline.PcItem(s.Name+"."+t.Name))
		}
	}

	items := make([]readline.PrefixCompleterInterface, 0, len(REPLCommands)+1)
	for _, c := range REPLCommands {
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			if c.Tables {
				items = append(items, readline.PcItem(name, tables...))
			} else {
				items = append(items, readline.PcItem(name))
			}
		}
	}
	return readline.NewPrefixCompleter(items...)
}
