package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/leapdesk/internal/cli/output"
	"github.com/leapstack-labs/leapdesk/internal/generate"
	"github.com/leapstack-labs/leapdesk/internal/workspace"
	"github.com/spf13/cobra"
)

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	var run bool

	cmd := &cobra.Command{
		Use:   "ask <connection> <request...>",
		Short: "Translate a request into SQL",
		Long: `Translate a natural-language request into SQL using the tables of the
database as context. The SQL is streamed as it is generated.

With --run the generated SQL is executed and the result printed.`,
		Example: `  leapdesk ask db.internal:5432/sales "top 10 customers by revenue"
  leapdesk ask db.internal:5432/sales --run how many orders were placed today`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			ws, err := cc.Session.OpenWorkspace(ctx, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = cc.Session.CloseWorkspace(ws) }()

			if err := ws.WaitIdle(ctx); err != nil {
				return err
			}
			if err := ws.State().CatalogErr; err != nil {
				cc.Renderer.Warning("generating without table context: " + err.Error())
			}

			intent := strings.Join(args[1:], " ")
			stream := io.Discard
			if cc.Renderer.EffectiveMode() == output.ModeText {
				stream = cc.Renderer.Writer()
			}
			sqlText, err := generateSQL(ctx, ws, intent, stream)
			if err != nil {
				return err
			}

			if !run {
				if cc.Renderer.EffectiveMode() == output.ModeJSON {
					return cc.Renderer.JSON(map[string]string{"intent": intent, "sql": sqlText})
				}
				if stream == io.Discard {
					cc.Renderer.Println(sqlText)
				}
				return nil
			}

			if stream != io.Discard {
				cc.Renderer.Println("")
			}
			return runDraft(ctx, ws, cc.Renderer)
		},
	}

	cmd.Flags().BoolVar(&run, "run", false, "Execute the generated SQL")
	return cmd
}

// generateSQL generates SQL for intent in ws, copying the draft to w as it
// grows. A refusal from the model is returned as an error.
func generateSQL(ctx context.Context, ws *workspace.Workspace, intent string, w io.Writer) (string, error) {
	sub := ws.Subscribe()
	defer sub.Unsubscribe()

	if err := ws.GenerateSQL(intent); err != nil {
		return "", err
	}
	id := ws.State().GenerationID

	printed := ""
	for {
		select {
		case st, ok := <-sub.C():
			if !ok {
				return "", workspace.ErrClosed
			}
			if st.GenerationID != id {
				continue
			}
			if strings.HasPrefix(st.SQL, printed) {
				_, _ = io.WriteString(w, st.SQL[len(printed):])
				printed = st.SQL
			}
			if st.Generating() {
				continue
			}
			_, _ = io.WriteString(w, "\n")
			if st.Err != nil {
				return "", st.Err
			}
			if generate.IsRefusal(st.SQL) {
				return "", fmt.Errorf("the model declined the request: %s", generate.RefusalReason(st.SQL))
			}
			return strings.TrimSpace(st.SQL), nil
		case <-ctx.Done():
			_ = ws.CancelGeneration()
			return "", ctx.Err()
		}
	}
}

// runDraft executes the draft SQL of ws and renders the outcome.
func runDraft(ctx context.Context, ws *workspace.Workspace, r *output.Renderer) error {
	if err := ws.RunDraft(); err != nil {
		return err
	}
	if err := ws.WaitIdle(ctx); err != nil {
		return err
	}
	st := ws.State()
	if st.Err != nil {
		return st.Err
	}
	return r.Result(st.Result)
}
