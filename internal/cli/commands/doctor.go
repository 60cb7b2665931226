package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapdesk/internal/cli/output"
	"github.com/leapstack-labs/leapdesk/pkg/core"
	"github.com/spf13/cobra"
)

// Health check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, storage and saved connections",
		Long: `Check that LeapDesk is ready to use.

The doctor command reports on:
- Configuration (config file, model endpoint, API key)
- Storage (data directory, saved connections)
- Connections (whether every saved database is reachable)

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  leapdesk doctor

  # Output as JSON
  leapdesk doctor --output json`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Checks          []HealthCheck `json:"checks"`
	Score           int           `json:"score"`
	Recommendations []string      `json:"recommendations"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Group  string `json:"group"`
	Status string `json:"status"` // "pass", "warn", "error"
	Detail string `json:"detail,omitempty"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	checks := configChecks(cc)
	checks = append(checks, storageChecks(cc)...)
	checks = append(checks, connectionChecks(cmd.Context(), cc)...)

	out := &DoctorOutput{
		Checks:          checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
	}

	switch cc.Renderer.EffectiveMode() {
	case output.ModeJSON:
		return cc.Renderer.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(cc.Renderer, out)
	default:
		renderDoctorText(cc.Renderer, out)
	}
	return nil
}

func configChecks(cc *CommandContext) []HealthCheck {
	cfg := cc.Cfg
	checks := make([]HealthCheck, 0, 3)

	file := HealthCheck{ID: "config_file", Name: "Config file", Group: "configuration", Status: statusPass, Detail: "built-in defaults"}
	if cfg.Source != "" {
		file.Detail = cfg.Source
	}
	checks = append(checks, file)

	checks = append(checks, HealthCheck{
		ID: "model", Name: "Model endpoint", Group: "configuration", Status: statusPass,
		Detail: cfg.LLM.Model + " at " + cfg.LLM.BaseURL,
	})

	key := HealthCheck{ID: "api_key", Name: "API key", Group: "configuration", Status: statusPass, Detail: "set"}
	if cfg.LLM.APIKey == "" {
		key.Status = statusWarn
		key.Detail = "not set"
	}
	return append(checks, key)
}

func storageChecks(cc *CommandContext) []HealthCheck {
	dir := HealthCheck{ID: "data_dir", Name: "Data directory", Group: "storage", Status: statusPass, Detail: cc.Cfg.DataDir}
	if f, err := os.CreateTemp(cc.Cfg.DataDir, ".doctor-*"); err != nil {
		dir.Status = statusError
		dir.Detail = err.Error()
	} else {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}

	saved := HealthCheck{ID: "saved_connections", Name: "Saved connections", Group: "storage", Status: statusPass}
	conns, err := cc.Session.Registry().List()
	switch {
	case err != nil:
		saved.Status = statusError
		saved.Detail = err.Error()
	case len(conns) == 0:
		saved.Status = statusWarn
		saved.Detail = "none saved"
	default:
		saved.Detail = fmt.Sprintf("%d saved", len(conns))
	}
	return []HealthCheck{dir, saved}
}

func connectionChecks(ctx context.Context, cc *CommandContext) []HealthCheck {
	conns, err := cc.Session.Registry().List()
	if err != nil {
		return nil
	}

	seen := make(map[string]int)
	for _, c := range conns {
		seen[c.Name]++
	}

	checks := make([]HealthCheck, 0, len(conns))
	checked := make(map[string]bool)
	for _, c := range conns {
		if checked[c.ConnectionString] {
			continue
		}
		checked[c.ConnectionString] = true

		check := HealthCheck{ID: "reachable", Name: c.Name, Group: "connections", Status: statusPass, Detail: "reachable"}
		if !cc.Session.Connector().CheckConnectivity(ctx, c.ConnectionString) {
			check.Status = statusError
			check.Detail = "unreachable: " + core.RedactConnectionString(c.ConnectionString)
		} else if seen[c.Name] > 1 {
			check.ID = "duplicate"
			check.Status = statusWarn
			check.Detail = fmt.Sprintf("saved %d times under this name", seen[c.Name])
		}
		checks = append(checks, check)
	}
	return checks
}

// calculateHealthScore computes a health score from 0-100.
// Errors weigh more than warnings.
func calculateHealthScore(checks []HealthCheck) int {
	score := 100
	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= 25
		case statusWarn:
			score -= 10
		}
	}
	return max(score, 0)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.Status == statusPass {
			continue
		}
		rec := getRecommendation(check.ID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(id string) string {
	switch id {
	case "api_key":
		return "Set OPENAI_API_KEY or llm.api_key so requests can be translated into SQL"
	case "data_dir":
		return "Make the data directory writable or choose another one with --data-dir"
	case "saved_connections":
		return "Save a connection with: leapdesk connections add <connection-string>"
	case "reachable":
		return "Check that unreachable databases are running, or remove them with: leapdesk connections remove <name>"
	case "duplicate":
		return "Remove duplicate connections and add them again once"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header.Render("LeapDesk Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("")
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		status := "success"
		switch check.Status {
		case statusWarn:
			status = "warn"
		case statusError:
			status = "failed"
		}
		r.StatusLine("   "+check.Name, status, check.Detail)
	}
	r.Println("")

	// Health Score
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println("# LeapDesk Health Report")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("")
			r.Println("## " + titleCaser.String(currentGroup))
			r.Println("")
		}
		r.Printf("- **[%s]** %s", strings.ToUpper(check.Status), check.Name)
		if check.Detail != "" {
			r.Printf(": %s", check.Detail)
		}
		r.Println("")
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}
