package service

import (
	"errors"
	"fmt"

	"resume-builder-go/internal/analysis"
	"resume-builder-go/internal/parser"
	"resume-builder-go/internal/resume"
)

// ErrResumeNotReady 表示简历已创建但导入尚未成功；
// ErrUpstreamLLM 表示模型服务本身调用失败，如网络或鉴权问题
var (
	ErrResumeNotFound = errors.New("简历不存在")
	ErrResumeNotReady = errors.New("简历尚未就绪")
	ErrSessionMissing = errors.New("缺少会话令牌")
	ErrInvalidSession = errors.New("会话令牌无效")
	ErrInvalidEmail   = errors.New("邮箱不能为空")
	ErrUpstreamLLM    = errors.New("LLM服务调用失败")

	ErrImportTextNotFound = errors.New("没有归档的导入原文")
)

// OperationError 携带简历ID和操作名的服务错误
type OperationError struct {
	ResumeID string
	Op       string
	BaseErr  error
}

func (e *OperationError) Error() string {
	if e.ResumeID == "" {
		return fmt.Sprintf("%s (操作:%s)", e.BaseErr, e.Op)
	}
	return fmt.Sprintf("%s (操作:%s, ID:%s)", e.BaseErr, e.Op, e.ResumeID)
}

func (e *OperationError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *OperationError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// wrapLLMError 区分模型输出问题与上游调用失败，前者原样返回
func wrapLLMError(resumeID, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, parser.ErrUnreadableText) ||
		errors.Is(err, parser.ErrInvalidOutput) ||
		errors.Is(err, analysis.ErrInvalidOutput) ||
		IsValidationError(err) {
		return err
	}
	return &OperationError{ResumeID: resumeID, Op: op, BaseErr: fmt.Errorf("%w: %w", ErrUpstreamLLM, err)}
}

// IsValidationError 是否为文档校验失败
func IsValidationError(err error) bool {
	var ve *resume.ValidationError
	var ue *resume.UnsupportedValueTypeError
	return errors.As(err, &ve) || errors.As(err, &ue)
}
