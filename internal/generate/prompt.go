package generate

import (
	"strings"

	"github.com/leapstack-labs/leapdesk/pkg/core"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message sent to the provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

const (
	catalogHeader    = "The following tables with their column definitions are available:\n"
	quoteInstruction = "Wrap all table names and column names in double quotes\n"
	requestPreamble  = "Given the following request, return SQL only (only sql, do not start or end your response with anything) if the request is valid, otherwise return an error message starting with " + RefusalPrefix + "\n\n\n"
	requestSuffix    = "\nOutput:\n"
)

// RefusalPrefix starts a response that declines to produce SQL.
const RefusalPrefix = "ERROR:"

// BuildPrompt returns the messages for translating intent into SQL.
//
// A nil catalog omits the table listing entirely. Otherwise every
// non-system schema contributes one message per schema, table and column.
// The identifier quoting instruction and the user request always follow.
func BuildPrompt(intent string, catalog []core.Schema) []Message {
	var msgs []Message

	if catalog != nil {
		msgs = append(msgs, Message{Role: RoleSystem, Content: catalogHeader})
		for _, schema := range core.UserSchemas(catalog) {
			msgs = append(msgs, Message{Role: RoleSystem, Content: "Schema: " + schema.Name})
			for _, table := range schema.Tables {
				msgs = append(msgs, Message{Role: RoleSystem, Content: "Table: " + table.Name})
				for _, col := range table.Columns {
					msgs = append(msgs, Message{
						Role:    RoleSystem,
						Content: "Column: " + col.Name + " (" + col.DataType + ")",
					})
				}
			}
		}
	}

	msgs = append(msgs,
		Message{Role: RoleSystem, Content: quoteInstruction},
		Message{Role: RoleUser, Content: requestPreamble + intent + requestSuffix},
	)
	return msgs
}

// IsRefusal reports whether a generated draft is an error message rather
// than SQL.
func IsRefusal(draft string) bool {
	return strings.HasPrefix(strings.TrimSpace(draft), RefusalPrefix)
}

// RefusalReason returns the text after the refusal prefix.
func RefusalReason(draft string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(draft), RefusalPrefix))
}
