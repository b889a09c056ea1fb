package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// RetryPolicy LLM调用的重试策略
type RetryPolicy struct {
	MaxRetries  int           // 首次调用之外的最大重试次数
	RetryDelay  time.Duration // 首次重试前的等待，之后翻倍
	CallTimeout time.Duration // 单次调用超时
}

// DefaultRetryPolicy 默认重试2次，初始等待2秒，单次60秒超时
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, RetryDelay: 2 * time.Second, CallTimeout: 60 * time.Second}
}

// Generator 只需要一次性生成能力的模型
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Complete 发送 system + user 两条消息并返回文本结果，可重试的错误按策略退避重试
func Complete(ctx context.Context, m Generator, policy RetryPolicy, systemContent, userContent string, opts ...model.Option) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemContent),
		schema.UserMessage(userContent),
	}
	log := zerolog.Ctx(ctx)

	delay := policy.RetryDelay
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("上下文已取消: %w", ctx.Err())
			case <-time.After(delay):
				delay *= 2
			}
			log.Debug().Int("attempt", attempt).Err(lastErr).Msg("重试LLM调用")
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if policy.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, policy.CallTimeout)
		}
		resp, err := m.Generate(callCtx, messages, opts...)
		cancel()

		if err == nil {
			if resp == nil {
				return "", fmt.Errorf("LLM返回了空消息")
			}
			return resp.Content, nil
		}
		lastErr = err
		if !IsRetryableError(err) {
			break
		}
	}
	return "", fmt.Errorf("LLM调用失败: %w", lastErr)
}

// IsRetryableError 判断错误是否值得重试: 网络类错误、超时、429与5xx
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host")
}
