package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType 写入 error.type 属性，便于按来源过滤
type ErrorType string

const (
	ErrorTypeHTTP       ErrorType = "http"
	ErrorTypeDB         ErrorType = "db"
	ErrorTypeCache      ErrorType = "cache"
	ErrorTypeLLM        ErrorType = "llm"
	ErrorTypeValidation ErrorType = "validation"
)

func annotate(span trace.Span, err error, errorType ErrorType, extra ...attribute.KeyValue) {
	span.RecordError(err)
	attrs := append([]attribute.KeyValue{
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", TruncateString(err.Error(), DefaultMaxLength)),
	}, extra...)
	span.SetAttributes(attrs...)
}

// RecordError 记录错误并把span标记为失败
func RecordError(span trace.Span, err error, errorType ErrorType) {
	if span == nil || err == nil {
		return
	}
	annotate(span, err, errorType)
	span.SetStatus(codes.Error, TruncateString(err.Error(), DefaultMaxLength))
}

// Fail 记录后原样返回 err
func Fail(span trace.Span, err error, errorType ErrorType) error {
	RecordError(span, err, errorType)
	return err
}

// RecordHTTPError 记录接口返回的错误；4xx 属于调用方问题，不标记失败
func RecordHTTPError(span trace.Span, err error, statusCode int) {
	if span == nil || err == nil {
		return
	}
	category := "client_error"
	if statusCode >= 500 {
		category = "server_error"
	}
	annotate(span, err, ErrorTypeHTTP,
		attribute.Int("http.status_code", statusCode),
		attribute.String("error.category", category),
	)
	if statusCode >= 500 {
		span.SetStatus(codes.Error, TruncateString(err.Error(), DefaultMaxLength))
	}
}
