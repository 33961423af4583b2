package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/dataquery/analysis"
	"github.com/isdmx/dataquery/config"
	"github.com/isdmx/dataquery/dataset"
	"github.com/isdmx/dataquery/generator"
	"github.com/isdmx/dataquery/history"
	"github.com/isdmx/dataquery/logger"
	"github.com/isdmx/dataquery/mcpserver"
	"github.com/isdmx/dataquery/sandbox"
)

const salesCSV = `region,units,price
north,3,2.5
south,4,1.5
north,5,2.0
east,1,
`

// chatServer is a minimal OpenAI-compatible endpoint replaying canned answers
func chatServer(t *testing.T, answers ...string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if !assert.NotEmpty(t, answers, "unexpected completion request") {
			http.Error(w, "no answer", http.StatusInternalServerError)
			return
		}
		answer := answers[0]
		answers = answers[1:]

		content, _ := json.Marshal(answer)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": ` + string(content) + `}
			}]
		}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func loadConfig(t *testing.T, generatorURL string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
sandbox:
  timeout_sec: 2
  grace_ms: 100
logging:
  mode: development
  level: debug
generator:
  base_url: ` + generatorURL + `/
  api_key: test-key
  model: test-model
history:
  enabled: true
  path: ` + filepath.Join(t.TempDir(), "runs.db") + `
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

type stack struct {
	service *analysis.Service
	server  *mcpserver.MCPServer
	store   history.Store
}

// newStack wires the same components as cmd/server from a config file
func newStack(t *testing.T, answers ...string) stack {
	t.Helper()
	cfg := loadConfig(t, chatServer(t, answers...).URL)

	// The configured logger must build; test output goes through zaptest instead
	appLogger, err := logger.NewFromConfig(cfg)
	require.NoError(t, err)
	_ = appLogger.Sync()
	log := zaptest.NewLogger(t)

	executor, err := sandbox.NewExecutor(log, cfg)
	require.NoError(t, err)
	store, err := history.NewFromConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	service := analysis.NewFromConfig(cfg, log, generator.NewFromConfig(cfg, log), executor, store)
	server, err := mcpserver.New(cfg, log, service)
	require.NoError(t, err)

	return stack{service: service, server: server, store: store}
}

// callTool sends a tools/call request through the MCP message handler
func callTool(t *testing.T, s stack, name string, args map[string]any) (string, bool) {
	t.Helper()
	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	response := s.server.GetMCPServer().HandleMessage(context.Background(), request)
	raw, err := json.Marshal(response)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	require.Len(t, decoded.Result.Content, 1, string(raw))
	return decoded.Result.Content[0].Text, decoded.Result.IsError
}

func TestIntegrationAskOverMCP(t *testing.T) {
	s := newStack(t,
		"region",
		"```javascript\nconst totals = df.groupBy('region').agg('units', 'sum');\nprint(totals.sortBy('units', false).row(0).region);\n```",
	)

	text, isError := callTool(t, s, mcpserver.ToolAsk, map[string]any{
		"csv":      salesCSV,
		"question": "Which region sold the most units?",
	})
	assert.False(t, isError, text)
	assert.Contains(t, text, "Relevant column: region")
	assert.Contains(t, text, "df.groupBy('region')")
	assert.True(t, strings.HasSuffix(text, "north\n"), text)

	entries, err := s.service.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Which region sold the most units?", entries[0].Question)
	assert.Equal(t, "region", entries[0].Column)
	assert.Equal(t, sandbox.KindSuccess, entries[0].Outcome.Kind)
}

func TestIntegrationRunScriptOverMCP(t *testing.T) {
	s := newStack(t)

	t.Run("Success", func(t *testing.T) {
		text, isError := callTool(t, s, mcpserver.ToolRunScript, map[string]any{
			"csv":    salesCSV,
			"script": "print(df.price.count(), df.units.sum())",
		})
		assert.False(t, isError)
		assert.Equal(t, "3 13\n", text)
	})

	t.Run("DataReferenceError", func(t *testing.T) {
		text, isError := callTool(t, s, mcpserver.ToolRunScript, map[string]any{
			"csv":    salesCSV,
			"script": "print('partial'); print(df.revenue.sum())",
		})
		assert.True(t, isError)
		assert.True(t, strings.HasPrefix(text, sandbox.FailureMarker))
		assert.Contains(t, text, "revenue")
		assert.NotContains(t, text, "partial")
	})

	t.Run("Timeout", func(t *testing.T) {
		text, isError := callTool(t, s, mcpserver.ToolRunScript, map[string]any{
			"csv":    salesCSV,
			"script": "while (true) {}",
		})
		assert.True(t, isError)
		assert.Contains(t, text, sandbox.ErrorKindTimeout)
	})

	t.Run("NoEscape", func(t *testing.T) {
		text, isError := callTool(t, s, mcpserver.ToolRunScript, map[string]any{
			"csv":    salesCSV,
			"script": "print(typeof require, typeof globalThis.process); eval('1')",
		})
		assert.True(t, isError)
		assert.Contains(t, text, sandbox.ErrorKindReference)
	})

	entries, err := s.store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestIntegrationDescribeOverMCP(t *testing.T) {
	s := newStack(t)

	text, isError := callTool(t, s, mcpserver.ToolDescribe, map[string]any{"csv": salesCSV})
	assert.False(t, isError)

	var schema dataset.Schema
	require.NoError(t, json.Unmarshal([]byte(text), &schema))
	assert.Equal(t, 4, schema.Rows)
	assert.Equal(t, []string{"region", "units", "price"}, schema.Names())
	assert.Equal(t, map[string]string{"region": "string", "units": "integer", "price": "float"}, schema.DTypes())
}

func TestIntegrationIdempotentRuns(t *testing.T) {
	s := newStack(t)
	frame, err := dataset.ReadCSV(strings.NewReader(salesCSV))
	require.NoError(t, err)

	script := "print(df.describe().toString()); print(Math.random())"
	first := s.service.Run(context.Background(), script, frame)
	second := s.service.Run(context.Background(), script, frame)
	require.Equal(t, sandbox.KindSuccess, first.Outcome.Kind, first.Message())
	assert.True(t, first.Outcome.Equivalent(second.Outcome))
	assert.NotEqual(t, first.ID, second.ID)
}
