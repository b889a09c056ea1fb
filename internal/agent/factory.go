package agent

import (
	"net/http"
)

// ModelFactory 按调用方的API Key创建模型，每个会话使用自己的密钥
type ModelFactory interface {
	NewModel(apiKey, modelName string) (Generator, error)
}

// OpenAIFactory 创建 OpenAIChatModel
type OpenAIFactory struct {
	APIURL      string
	Temperature float32
	HTTPClient  *http.Client
}

// NewModel 实现 ModelFactory，默认请求JSON格式输出
func (f *OpenAIFactory) NewModel(apiKey, modelName string) (Generator, error) {
	temperature := f.Temperature
	return NewOpenAIChatModel(ChatModelConfig{
		APIKey:       apiKey,
		Model:        modelName,
		APIURL:       f.APIURL,
		Temperature:  &temperature,
		JSONResponse: true,
		HTTPClient:   f.HTTPClient,
	})
}

var _ ModelFactory = (*OpenAIFactory)(nil)
