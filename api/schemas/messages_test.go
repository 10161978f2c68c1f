// api/schemas/messages_test.go
package schemas_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

func TestMessageConstructors(t *testing.T) {
	call := schemas.ToolCall{ID: "c1", Name: "click", Args: map[string]any{"target": "5"}}

	tests := []struct {
		name string
		got  schemas.Message
		want schemas.Message
	}{
		{
			name: "system",
			got:  schemas.SystemMessage("rules"),
			want: schemas.Message{Role: schemas.RoleSystem, Content: "rules"},
		},
		{
			name: "user",
			got:  schemas.UserMessage("do it"),
			want: schemas.Message{Role: schemas.RoleUser, Content: "do it"},
		},
		{
			name: "assistant with tool calls",
			got:  schemas.AssistantMessage("on it", call),
			want: schemas.Message{Role: schemas.RoleAssistant, Content: "on it", ToolCalls: []schemas.ToolCall{call}},
		},
		{
			name: "tool result",
			got:  schemas.ToolMessage("c1", "click", "done"),
			want: schemas.Message{Role: schemas.RoleTool, Content: "done", ToolCallID: "c1", ToolName: "click"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.got); diff != "" {
				t.Errorf("message mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAssistantMessageWithoutCalls(t *testing.T) {
	msg := schemas.AssistantMessage("final answer")
	assert.Equal(t, schemas.RoleAssistant, msg.Role)
	assert.Empty(t, msg.ToolCalls)
}
