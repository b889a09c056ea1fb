package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, RetryDelay: time.Millisecond, CallTimeout: time.Second}
}

func TestOpenAIChatModel_Generate(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(`{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	}))
	defer server.Close()

	temp := float32(0.2)
	m, err := NewOpenAIChatModel(ChatModelConfig{APIKey: "sk-test", Model: "test-model", APIURL: server.URL, Temperature: &temp, JSONResponse: true})
	require.NoError(t, err)

	msg, err := m.Generate(context.Background(), []*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, msg.Content)
	assert.Equal(t, schema.Assistant, msg.Role)
	require.NotNil(t, msg.ResponseMeta)
	assert.Equal(t, 5, msg.ResponseMeta.Usage.TotalTokens)

	assert.Equal(t, "test-model", captured["model"])
	assert.InDelta(t, 0.2, captured["temperature"], 1e-6)
	assert.Equal(t, map[string]any{"type": "json_object"}, captured["response_format"])
	assert.Len(t, captured["messages"], 2)
}

func TestOpenAIChatModel_OptionsOverrideDefaults(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	m, err := NewOpenAIChatModel(ChatModelConfig{APIKey: "k", APIURL: server.URL})
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")},
		model.WithModel("other"), model.WithTemperature(0.7))
	require.NoError(t, err)
	assert.Equal(t, "other", captured["model"])
	assert.InDelta(t, 0.7, captured["temperature"], 1e-6)
	assert.NotContains(t, captured, "response_format")
}

func TestOpenAIChatModel_FallsBackWithoutResponseFormat(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "response_format") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"response_format not supported"}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"plain"}}]}`))
	}))
	defer server.Close()

	m, err := NewOpenAIChatModel(ChatModelConfig{APIKey: "k", APIURL: server.URL, JSONResponse: true})
	require.NoError(t, err)

	msg, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "plain", msg.Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAIChatModel_APIErrorIsTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer server.Close()

	m, err := NewOpenAIChatModel(ChatModelConfig{APIKey: "k", APIURL: server.URL})
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, maxErrorBodyChars+len("..."), len(apiErr.Body))
}

func TestNewOpenAIChatModel_RequiresKey(t *testing.T) {
	_, err := NewOpenAIChatModel(ChatModelConfig{APIKey: "  "})
	assert.Error(t, err)
}

func TestOpenAIChatModel_RejectsTools(t *testing.T) {
	m, err := NewOpenAIChatModel(ChatModelConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.NoError(t, m.BindTools(nil))
	assert.ErrorIs(t, m.BindTools([]*schema.ToolInfo{{Name: "get_weather"}}), ErrToolsUnsupported)
}

func TestComplete_RetriesTransientErrors(t *testing.T) {
	mock := NewMockChatModel(
		MockResponse{Error: &APIError{StatusCode: http.StatusServiceUnavailable}},
		MockResponse{Error: errors.New("read: connection reset by peer")},
		MockResponse{Content: "done"},
	)

	out, err := Complete(context.Background(), mock, fastPolicy(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 3, mock.Calls())

	first := mock.Received(0)
	require.Len(t, first, 2)
	assert.Equal(t, schema.System, first[0].Role)
	assert.Equal(t, "user", first[1].Content)
}

func TestComplete_StopsOnPermanentError(t *testing.T) {
	mock := NewMockChatModel(
		MockResponse{Error: &APIError{StatusCode: http.StatusUnauthorized, Body: "bad key"}},
		MockResponse{Content: "never"},
	)

	_, err := Complete(context.Background(), mock, fastPolicy(), "s", "u")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, 1, mock.Calls())
}

func TestComplete_GivesUpAfterMaxRetries(t *testing.T) {
	timeout := errors.New("i/o timeout")
	mock := NewMockChatModel(MockResponse{Error: timeout}, MockResponse{Error: timeout}, MockResponse{Error: timeout}, MockResponse{Content: "late"})

	_, err := Complete(context.Background(), mock, fastPolicy(), "s", "u")
	assert.ErrorIs(t, err, timeout)
	assert.Equal(t, 3, mock.Calls())
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.True(t, IsRetryableError(context.DeadlineExceeded))
	assert.True(t, IsRetryableError(&APIError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, IsRetryableError(&APIError{StatusCode: http.StatusInternalServerError}))
	assert.False(t, IsRetryableError(&APIError{StatusCode: http.StatusBadRequest}))
	assert.False(t, IsRetryableError(errors.New("invalid json")))
}

func TestExtractJSON(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```":                 `{"a":1}`,
		"```\n{\"a\":2}\n```":                     `{"a":2}`,
		"结果如下: {\"a\":{\"b\":3}} 以上":               `{"a":{"b":3}}`,
		`{"text":"has } brace","n":1} trailing`:   `{"text":"has } brace","n":1}`,
		"没有JSON":                                  "",
		`{"unterminated":`:                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractJSON(in), "输入: %q", in)
	}
}

func TestOpenAIFactory(t *testing.T) {
	f := &OpenAIFactory{APIURL: "http://localhost/v1/chat/completions", Temperature: 0.2}
	m, err := f.NewModel("sk-session", "gpt-test")
	require.NoError(t, err)
	chat, ok := m.(*OpenAIChatModel)
	require.True(t, ok)
	assert.Equal(t, "gpt-test", chat.ModelName())

	_, err = f.NewModel("", "gpt-test")
	assert.Error(t, err)
}

func TestRepairJSON(t *testing.T) {
	broken := `{"summary": "他说"很好"然后离开", "n": 1}`
	fixed := RepairJSON(broken)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(fixed), &out))
	assert.Equal(t, `他说"很好"然后离开`, out["summary"])

	valid := `{"a": "b\"c", "d": ["e"]}`
	assert.Equal(t, valid, RepairJSON(valid), "合法JSON不应被修改")
}

func TestDecodeObject(t *testing.T) {
	var got map[string]any
	decode := func(data []byte) error { return json.Unmarshal(data, &got) }

	require.NoError(t, DecodeObject("\uFEFF```json\n{\"a\": \"x\"}\n```", decode))
	assert.Equal(t, "x", got["a"])

	require.NoError(t, DecodeObject(`前缀 {"a": "say "hi""} 后缀`, decode))
	assert.Equal(t, `say "hi"`, got["a"])

	assert.ErrorIs(t, DecodeObject("no json here", decode), ErrNoJSON)

	typeErr := DecodeObject(`{"a": 1}`, func(data []byte) error {
		var v struct{ A string }
		return json.Unmarshal(data, &v)
	})
	var ute *json.UnmarshalTypeError
	assert.ErrorAs(t, typeErr, &ute)
}
