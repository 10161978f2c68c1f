// internal/agent/memory_test.go
package agent

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestContextRoundTrip(t *testing.T) {
	m := NewSessionMemory(testMemoryConfig(), zap.NewNop())
	for i := 1; i <= 3; i++ {
		m.AppendExchange(fmt.Sprintf("task %d", i), fmt.Sprintf("answer %d", i), true)
	}

	// 3 exchanges = 6 messages; ask for the last 4.
	lines := strings.Split(m.Context(4), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "USER: task 2", lines[0])
	assert.Equal(t, "ASSISTANT: answer 2", lines[1])
	assert.Equal(t, "USER: task 3", lines[2])
	assert.Equal(t, "ASSISTANT: answer 3", lines[3])
}

func TestContextRequestLargerThanHistory(t *testing.T) {
	m := NewSessionMemory(testMemoryConfig(), zap.NewNop())
	m.AppendExchange("only task", "only answer", true)

	lines := strings.Split(m.Context(50), "\n")
	assert.Len(t, lines, 2)
}

func TestContextTruncatesLongContent(t *testing.T) {
	m := NewSessionMemory(testMemoryConfig(), zap.NewNop())
	long := strings.Repeat("x", 300)
	m.AppendExchange(long, "short", true)

	lines := strings.Split(m.Context(2), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "USER: "+strings.Repeat("x", 200)+"...", lines[0])
}

func TestContextEmptyWithoutHistory(t *testing.T) {
	m := NewSessionMemory(testMemoryConfig(), zap.NewNop())
	assert.Empty(t, m.Context(5))
	assert.Empty(t, m.Context(0))
}

func TestOldestMessagesEvicted(t *testing.T) {
	cfg := testMemoryConfig()
	cfg.MaxMessages = 4
	m := NewSessionMemory(cfg, zap.NewNop())

	for i := 1; i <= 5; i++ {
		m.AppendExchange(fmt.Sprintf("task %d", i), fmt.Sprintf("answer %d", i), true)
	}

	window := m.Context(100)
	assert.NotContains(t, window, "task 3")
	assert.Contains(t, window, "task 4")
	assert.Contains(t, window, "answer 5")
}

func TestContextTokenBudgetDropsOldestLines(t *testing.T) {
	cfg := testMemoryConfig()
	// An unknown model forces the deterministic bytes/4 estimate.
	cfg.TokenizerModel = "no-such-model"
	cfg.ContextTokens = 30
	m := NewSessionMemory(cfg, zap.NewNop())

	for i := 1; i <= 4; i++ {
		m.AppendExchange(fmt.Sprintf("task number %d padded out", i), fmt.Sprintf("answer number %d padded out", i), true)
	}

	window := m.Context(8)
	lines := strings.Split(window, "\n")
	assert.Less(t, len(lines), 8)
	// Most recent survives the trim.
	assert.Equal(t, "ASSISTANT: answer number 4 padded out", lines[len(lines)-1])
}

func TestForLLMSummarizesSession(t *testing.T) {
	m := NewSessionMemory(testMemoryConfig(), zap.NewNop())
	m.AppendExchange("log in", "done", true)
	m.AppendExchange("check out", "failed", false)

	report := m.ForLLM()
	assert.Contains(t, report, "Session ID: ")
	assert.Contains(t, report, "Interactions: 2")
	assert.Contains(t, report, "Recent successful tasks: 1")
	assert.Contains(t, report, "Recent conversation:\n")
	assert.Contains(t, report, "USER: check out")
}

func TestSuccessfulTasksCount(t *testing.T) {
	m := NewSessionMemory(testMemoryConfig(), zap.NewNop())
	m.AppendExchange("a", "ok", true)
	m.AppendExchange("b", "no", false)
	m.AppendExchange("c", "ok", true)

	assert.Equal(t, 2, m.SuccessfulTasks())
}

func TestClearDropsEverything(t *testing.T) {
	m := NewSessionMemory(testMemoryConfig(), zap.NewNop())
	m.AppendExchange("a", "ok", true)
	m.Clear()

	assert.Empty(t, m.Context(10))
	assert.Equal(t, 0, m.SuccessfulTasks())
}
