package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultChatCompletionsURL = "https://api.openai.com/v1/chat/completions"
	defaultModelName          = "gpt-4o-mini"
	// 错误信息中响应体的最大长度
	maxErrorBodyChars = 500
)

// ErrToolsUnsupported 该模型只用于结构化输出，不支持工具调用
var ErrToolsUnsupported = errors.New("该模型不支持工具调用")

// APIError 上游接口返回非200状态
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM接口请求失败，状态 %d: %s", e.StatusCode, e.Body)
}

// ChatModelConfig OpenAI兼容模型的配置
type ChatModelConfig struct {
	APIKey      string
	Model       string
	APIURL      string
	Temperature *float32
	// JSONResponse 为 true 时请求 response_format=json_object，
	// 上游不支持该参数(返回400)时自动去掉重试一次
	JSONResponse bool
	HTTPClient   *http.Client
}

// OpenAIChatModel 基于 OpenAI Chat Completions 协议的 eino 模型实现
type OpenAIChatModel struct {
	apiKey       string
	modelName    string
	apiURL       string
	temperature  *float32
	jsonResponse bool
	httpClient   *http.Client
}

// NewOpenAIChatModel 创建模型实例
func NewOpenAIChatModel(cfg ChatModelConfig) (*OpenAIChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	m := &OpenAIChatModel{
		apiKey:       cfg.APIKey,
		modelName:    cfg.Model,
		apiURL:       cfg.APIURL,
		temperature:  cfg.Temperature,
		jsonResponse: cfg.JSONResponse,
		httpClient:   cfg.HTTPClient,
	}
	if strings.TrimSpace(m.modelName) == "" {
		m.modelName = defaultModelName
	}
	if strings.TrimSpace(m.apiURL) == "" {
		m.apiURL = defaultChatCompletionsURL
	}
	if m.httpClient == nil {
		m.httpClient = &http.Client{}
	}
	return m, nil
}

// ModelName 实际使用的模型名称
func (m *OpenAIChatModel) ModelName() string {
	return m.modelName
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	TopP           *float32        `json:"top_p,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Generate 实现 model.ChatModel
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Temperature: m.temperature,
		Model:       &m.modelName,
	}, opts...)

	req := chatCompletionRequest{
		Model:       m.modelName,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
		TopP:        options.TopP,
		Stop:        options.Stop,
	}
	if options.Model != nil && *options.Model != "" {
		req.Model = *options.Model
	}
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		req.Messages = append(req.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("消息列表不能为空")
	}

	if m.jsonResponse {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
		resp, err := m.do(ctx, req)
		var apiErr *APIError
		if err == nil || !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
			return resp, err
		}
		// 部分兼容接口不支持 response_format
		req.ResponseFormat = nil
	}
	return m.do(ctx, req)
}

func (m *OpenAIChatModel) do(ctx context.Context, payload chatCompletionRequest) (*schema.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: httpResp.StatusCode, Body: truncate(string(respBody), maxErrorBodyChars)}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("API 未返回任何选项: %s", truncate(string(respBody), maxErrorBodyChars))
	}

	choice := parsed.Choices[0]
	out := &schema.Message{Role: schema.Assistant}
	if choice.Message.Role != "" {
		out.Role = schema.RoleType(choice.Message.Role)
	}
	if choice.Message.Content != nil {
		out.Content = *choice.Message.Content
	}
	out.ResponseMeta = &schema.ResponseMeta{FinishReason: choice.FinishReason}
	if parsed.Usage != nil {
		out.ResponseMeta.Usage = &schema.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		}
	}
	return out, nil
}

// Stream 未实现，结构化输出场景只需要一次性结果
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("OpenAIChatModel 不支持流式输出")
}

// BindTools 实现 model.ChatModel，仅接受空工具列表
func (m *OpenAIChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) > 0 {
		return ErrToolsUnsupported
	}
	return nil
}

// WithTools 实现 model.ToolCallingChatModel
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		return nil, ErrToolsUnsupported
	}
	return m, nil
}

var _ model.ChatModel = (*OpenAIChatModel)(nil)
var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
