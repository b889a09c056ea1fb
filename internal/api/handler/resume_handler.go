package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-builder-go/internal/service"
)

// DefaultMaxTextBytes 导入文本的默认上限
const DefaultMaxTextBytes = 1 << 20

// ResumeHandler 简历相关接口
type ResumeHandler struct {
	resumes      *service.ResumeService
	maxTextBytes int
}

// NewResumeHandler maxTextBytes<=0 时使用默认上限
func NewResumeHandler(resumes *service.ResumeService, maxTextBytes int) *ResumeHandler {
	if maxTextBytes <= 0 {
		maxTextBytes = DefaultMaxTextBytes
	}
	return &ResumeHandler{resumes: resumes, maxTextBytes: maxTextBytes}
}

type importTextRequest struct {
	Text string `json:"text"`
}

// HandleSchema GET /resume/schema
func (h *ResumeHandler) HandleSchema(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, h.resumes.Schema())
}

// HandleImportText POST /resume/import/text
// 请求体可以是 {"text": "..."}，也可以直接是纯文本
func (h *ResumeHandler) HandleImportText(ctx context.Context, c *app.RequestContext) {
	body := c.Request.Body()
	if len(body) > h.maxTextBytes {
		c.AbortWithStatusJSON(consts.StatusRequestEntityTooLarge, utils.H{
			"detail": fmt.Sprintf("Resume text is too large (max %d bytes).", h.maxTextBytes),
		})
		return
	}

	text := string(body)
	if bytes.HasPrefix(c.ContentType(), []byte(consts.MIMEApplicationJSON)) {
		var req importTextRequest
		if err := json.Unmarshal(body, &req); err != nil {
			c.AbortWithStatusJSON(consts.StatusUnprocessableEntity, utils.H{"detail": detailMalformedRequest})
			return
		}
		text = req.Text
	}

	view, err := h.resumes.ImportText(ctx, currentSession(c), text)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// HandleList GET /resumes
func (h *ResumeHandler) HandleList(ctx context.Context, c *app.RequestContext) {
	items, err := h.resumes.List(ctx, currentSession(c).Email)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"resumes": items})
}

// HandleGet GET /resumes/:id
func (h *ResumeHandler) HandleGet(ctx context.Context, c *app.RequestContext) {
	view, err := h.resumes.Get(ctx, currentSession(c).Email, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// HandleSave PUT /resumes/:id
func (h *ResumeHandler) HandleSave(ctx context.Context, c *app.RequestContext) {
	view, err := h.resumes.Save(ctx, currentSession(c).Email, c.Param("id"), c.Request.Body())
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// HandleDelete DELETE /resumes/:id
func (h *ResumeHandler) HandleDelete(ctx context.Context, c *app.RequestContext) {
	if err := h.resumes.Delete(ctx, currentSession(c).Email, c.Param("id")); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"status": "success", "message": "Resume deleted"})
}

// HandleAnalyze POST /resumes/:id/analyses
func (h *ResumeHandler) HandleAnalyze(ctx context.Context, c *app.RequestContext) {
	view, err := h.resumes.Analyze(ctx, currentSession(c), c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// HandleImportSource GET /resumes/:id/source
func (h *ResumeHandler) HandleImportSource(ctx context.Context, c *app.RequestContext) {
	view, err := h.resumes.ImportSource(ctx, currentSession(c).Email, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// HandleListAnalyses GET /resumes/:id/analyses
func (h *ResumeHandler) HandleListAnalyses(ctx context.Context, c *app.RequestContext) {
	views, err := h.resumes.ListAnalyses(ctx, currentSession(c).Email, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"analyses": views})
}
