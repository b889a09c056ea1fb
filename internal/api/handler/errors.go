package handler

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/trace"

	"resume-builder-go/internal/analysis"
	"resume-builder-go/internal/logger"
	"resume-builder-go/internal/parser"
	"resume-builder-go/internal/resume"
	"resume-builder-go/internal/service"
	"resume-builder-go/internal/tracing"
)

// 返回给客户端的错误说明
const (
	detailResumeNotFound   = "Resume not found."
	detailResumeNotReady   = "Resume is not ready yet. Please re-import."
	detailImportTextAbsent = "Import text not found."
	detailSessionMissing   = "Session token missing"
	detailInvalidSession   = "Invalid session token"
	detailLogoutInvalid    = "Invalid session"
	detailEmailRequired    = "Email is required."
	detailInvalidPayload   = "Invalid resume payload."
	detailUnreadableText   = "Could not read enough text from the resume. Please provide a text-based resume."
	detailInvalidImport    = "The model returned an invalid resume. Please try again."
	detailInvalidAnalysis  = "The model returned an invalid analysis. Please try again."
	detailUpstreamFailure  = "The language model request failed. Please try again later."
	detailInternalFailure  = "Internal server error."
	detailMalformedRequest = "Malformed request body."
)

// errorStatus 把服务层错误映射为HTTP状态码与说明
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrResumeNotFound):
		return consts.StatusNotFound, detailResumeNotFound
	case errors.Is(err, service.ErrImportTextNotFound):
		return consts.StatusNotFound, detailImportTextAbsent
	case errors.Is(err, service.ErrResumeNotReady):
		return consts.StatusConflict, detailResumeNotReady
	case errors.Is(err, service.ErrSessionMissing):
		return consts.StatusUnauthorized, detailSessionMissing
	case errors.Is(err, service.ErrInvalidSession):
		return consts.StatusUnauthorized, detailInvalidSession
	case errors.Is(err, service.ErrInvalidEmail):
		return consts.StatusUnprocessableEntity, detailEmailRequired
	case service.IsValidationError(err):
		return consts.StatusUnprocessableEntity, detailInvalidPayload
	case errors.Is(err, parser.ErrUnreadableText):
		return consts.StatusUnprocessableEntity, detailUnreadableText
	case errors.Is(err, parser.ErrInvalidOutput):
		return consts.StatusUnprocessableEntity, detailInvalidImport
	case errors.Is(err, analysis.ErrInvalidOutput):
		return consts.StatusUnprocessableEntity, detailInvalidAnalysis
	case errors.Is(err, service.ErrUpstreamLLM):
		return consts.StatusBadGateway, detailUpstreamFailure
	default:
		return consts.StatusInternalServerError, detailInternalFailure
	}
}

// writeError 写出错误响应；校验失败时附带全部违规项
func writeError(ctx context.Context, c *app.RequestContext, err error) {
	status, detail := errorStatus(err)
	tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, status)
	log := logger.Ctx(ctx)
	if status >= consts.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("请求处理失败")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("请求被拒绝")
	}

	body := utils.H{"detail": detail}
	var ve *resume.ValidationError
	if errors.As(err, &ve) {
		body["violations"] = ve.Violations
	}
	c.AbortWithStatusJSON(status, body)
}
