package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse MockChatModel 的单次预期响应
type MockResponse struct {
	Content string
	Error   error
}

// MockChatModel 按顺序返回预设响应的模型，供测试使用
type MockChatModel struct {
	mu        sync.Mutex
	responses []MockResponse
	index     int
	received  [][]*schema.Message
	options   []*model.Options
}

// NewMockChatModel 创建按顺序返回响应的模拟模型
func NewMockChatModel(responses ...MockResponse) *MockChatModel {
	return &MockChatModel{responses: responses}
}

// Generate 返回下一个预设响应
func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.received = append(m.received, append([]*schema.Message(nil), input...))
	m.options = append(m.options, model.GetCommonOptions(&model.Options{}, opts...))

	if m.index >= len(m.responses) {
		return nil, errors.New("mock model has run out of responses")
	}
	resp := m.responses[m.index]
	m.index++
	if resp.Error != nil {
		return nil, resp.Error
	}
	return schema.AssistantMessage(resp.Content, nil), nil
}

// Stream 不支持
func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not implemented in MockChatModel")
}

// Calls 已发生的调用次数
func (m *MockChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

// Received 第 i 次调用收到的消息
func (m *MockChatModel) Received(i int) []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.received) {
		return nil
	}
	return m.received[i]
}

// MockFactory 总是返回同一个模型，并记录请求的密钥与模型名
type MockFactory struct {
	Model     Generator
	Err       error
	APIKeys   []string
	ModelName []string
}

// NewModel 实现 ModelFactory
func (f *MockFactory) NewModel(apiKey, modelName string) (Generator, error) {
	f.APIKeys = append(f.APIKeys, apiKey)
	f.ModelName = append(f.ModelName, modelName)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Model, nil
}

var _ Generator = (*MockChatModel)(nil)
var _ ModelFactory = (*MockFactory)(nil)
