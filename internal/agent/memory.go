// internal/agent/memory.go
package agent

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/config"
)

const contextSnippetLimit = 200

type memoryMessage struct {
	Timestamp time.Time
	Role      schemas.Role
	Content   string
}

type taskRecord struct {
	Timestamp time.Time
	Task      string
	Result    string
	Success   bool
}

// SessionMemory is the bounded conversation store shared across loop
// invocations. Oldest entries are evicted past the configured maximums, and
// the rendered context window is additionally trimmed to a token budget.
type SessionMemory struct {
	mu       sync.Mutex
	cfg      config.MemoryConfig
	logger   *zap.Logger
	session  string
	messages []memoryMessage
	tasks    []taskRecord

	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
}

var _ schemas.ConversationMemory = (*SessionMemory)(nil)

func NewSessionMemory(cfg config.MemoryConfig, logger *zap.Logger) *SessionMemory {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 100
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = 100
	}
	return &SessionMemory{
		cfg:     cfg,
		logger:  logger.Named("memory"),
		session: uuid.New().String(),
	}
}

// AppendExchange records one completed loop invocation: the user's input and
// the assistant's final output as conversation messages, plus a task record
// carrying the success flag.
func (m *SessionMemory) AppendExchange(input, output string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.messages = append(m.messages,
		memoryMessage{Timestamp: now, Role: schemas.RoleUser, Content: input},
		memoryMessage{Timestamp: now, Role: schemas.RoleAssistant, Content: output},
	)
	for len(m.messages) > m.cfg.MaxMessages {
		m.messages = m.messages[1:]
	}

	m.tasks = append(m.tasks, taskRecord{Timestamp: now, Task: input, Result: output, Success: success})
	for len(m.tasks) > m.cfg.MaxTasks {
		m.tasks = m.tasks[1:]
	}
}

// Context renders the last n messages as "ROLE: content" lines, most recent
// last, each snippet capped at 200 characters. When a token budget is
// configured the oldest lines are dropped until the window fits.
func (m *SessionMemory) Context(n int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || len(m.messages) == 0 {
		return ""
	}

	recent := m.messages
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}

	lines := make([]string, 0, len(recent))
	for _, msg := range recent {
		content := msg.Content
		if len(content) > contextSnippetLimit {
			content = content[:contextSnippetLimit] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(msg.Role)), content))
	}

	if m.cfg.ContextTokens > 0 {
		for len(lines) > 1 && m.countTokens(strings.Join(lines, "\n")) > m.cfg.ContextTokens {
			lines = lines[1:]
		}
	}

	return strings.Join(lines, "\n")
}

// ForLLM builds the memory preamble prepended to the system prompt: session
// identity, task tally, and the recent conversation window.
func (m *SessionMemory) ForLLM() string {
	m.mu.Lock()
	session := m.session
	interactions := len(m.tasks)
	successful := 0
	for _, t := range m.tasks {
		if t.Success {
			successful++
		}
	}
	m.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Session ID: %s\n", session)
	fmt.Fprintf(&b, "Interactions: %d\n", interactions)
	if successful > 0 {
		fmt.Fprintf(&b, "\nRecent successful tasks: %d\n", successful)
	}

	window := m.cfg.ContextMessages
	if window <= 0 {
		window = 5
	}
	if recent := m.Context(window); recent != "" {
		fmt.Fprintf(&b, "\nRecent conversation:\n%s", recent)
	}

	return b.String()
}

// SuccessfulTasks reports how many recorded tasks completed successfully.
func (m *SessionMemory) SuccessfulTasks() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.tasks {
		if t.Success {
			n++
		}
	}
	return n
}

// Clear drops all retained messages and task records.
func (m *SessionMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	m.tasks = nil
}

// countTokens uses the configured tokenizer, falling back to a bytes/4
// estimate when the encoding cannot be loaded.
func (m *SessionMemory) countTokens(text string) int {
	m.encoderOnce.Do(func() {
		model := m.cfg.TokenizerModel
		if model == "" {
			model = "gpt-4o"
		}
		enc, err := tiktoken.EncodingForModel(model)
		if err != nil {
			m.logger.Warn("Tokenizer unavailable, falling back to byte estimate",
				zap.String("model", model), zap.Error(err))
			return
		}
		m.encoder = enc
	})

	if m.encoder == nil {
		return len(text) / 4
	}
	return len(m.encoder.Encode(text, nil, nil))
}
