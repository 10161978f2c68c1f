// internal/agent/askuser.go
package agent

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// askSpec is the parsed ask_user request.
type askSpec struct {
	Prompt  string   `json:"prompt"`
	Type    string   `json:"type"`
	Choices []string `json:"choices"`
	Default string   `json:"default"`
}

// UserPrompter collects a single value from the human operator on the
// terminal. The reader/writer are injectable for tests.
type UserPrompter struct {
	in           *bufio.Reader
	out          io.Writer
	logger       *zap.Logger
	readPassword func() (string, error)
}

func NewUserPrompter(in io.Reader, out io.Writer, logger *zap.Logger) *UserPrompter {
	p := &UserPrompter{
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger.Named("ask_user"),
	}
	// Terminal echo suppression is not portably available without another
	// dependency; the operator is warned instead.
	p.readPassword = func() (string, error) {
		fmt.Fprint(p.out, " (your input will be visible)")
		return p.readLine()
	}
	return p
}

// parseAskSpec normalizes the loosely-typed tool arguments. A bare string
// that is not JSON becomes the prompt itself.
func parseAskSpec(input any) askSpec {
	spec := askSpec{Type: "text"}

	switch v := input.(type) {
	case map[string]any:
		raw, err := json.Marshal(v)
		if err == nil {
			_ = json.Unmarshal(raw, &spec)
		}
	case string:
		trimmed := strings.TrimSpace(v)
		if err := json.Unmarshal([]byte(trimmed), &spec); err != nil {
			// Single-quoted pseudo-JSON is common from the model.
			requoted := strings.ReplaceAll(trimmed, "'", "\"")
			if err := json.Unmarshal([]byte(requoted), &spec); err != nil {
				spec.Prompt = trimmed
			}
		}
	}

	if spec.Prompt == "" {
		spec.Prompt = "Please provide one specific value:"
	}
	if spec.Type == "" {
		spec.Type = "text"
	}
	spec.Type = strings.ToLower(spec.Type)
	return spec
}

// Ask renders the prompt and reads one value, honoring the default and
// mapping numeric input onto the choice list.
func (p *UserPrompter) Ask(spec askSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n🔹 %s (single value)", spec.Prompt)

	if len(spec.Choices) > 0 {
		b.WriteString("\n   Choose one option:")
		for i, choice := range spec.Choices {
			fmt.Fprintf(&b, "\n   %d. %s", i+1, choice)
		}
		if spec.Default != "" {
			if idx := choiceIndex(spec.Choices, spec.Default); idx > 0 {
				fmt.Fprintf(&b, "\n   Default: %d. %s", idx, spec.Default)
			} else {
				fmt.Fprintf(&b, "\n   Default: %s", spec.Default)
			}
		}
		b.WriteString("\n   Enter single selection (number or option name): ")
	} else if spec.Default != "" {
		fmt.Fprintf(&b, " (default: %s): ", spec.Default)
	} else {
		b.WriteString(": ")
	}

	fmt.Fprint(p.out, b.String())

	var (
		input string
		err   error
	)
	if spec.Type == "password" {
		input, err = p.readPassword()
	} else {
		input, err = p.readLine()
	}
	if err != nil {
		return fmt.Sprintf("Error getting single input value from user: %v", err)
	}

	if input == "" && spec.Default != "" {
		input = spec.Default
		fmt.Fprintf(p.out, "Using default single value: %s\n", spec.Default)
	}

	if len(spec.Choices) > 0 {
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(spec.Choices) {
			input = spec.Choices[n-1]
			fmt.Fprintf(p.out, "Selected single option: %s\n", input)
		}
	}

	return input
}

func (p *UserPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func choiceIndex(choices []string, value string) int {
	for i, c := range choices {
		if c == value {
			return i + 1
		}
	}
	return 0
}
