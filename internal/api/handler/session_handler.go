package handler

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"resume-builder-go/internal/constants"
	"resume-builder-go/internal/service"
	"resume-builder-go/internal/storage/models"
)

// sessionContextKey 认证通过后会话在 RequestContext 中的键
const sessionContextKey = "session"

// SessionHandler 会话的签发、注销与认证中间件
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type createSessionRequest struct {
	Email string `json:"email"`
}

// RequireSession 校验 X-Session-Token，成功后把会话放入请求上下文
func (h *SessionHandler) RequireSession() app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+constants.SessionHeader, ""),
		keyauth.WithContextKey("session_token"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, token string) (bool, error) {
			session, err := h.sessions.Authenticate(ctx, token)
			if err != nil {
				return false, err
			}
			c.Set(sessionContextKey, session)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			switch {
			case errors.Is(err, keyauth.ErrMissingOrMalformedAPIKey):
				err = service.ErrSessionMissing
			case err == nil:
				err = service.ErrInvalidSession
			}
			writeError(ctx, c, err)
		}),
	)
}

// currentSession 取认证中间件放入的会话
func currentSession(c *app.RequestContext) *models.Session {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	session, _ := v.(*models.Session)
	return session
}

// HandleCreateSession POST /sessions
func (h *SessionHandler) HandleCreateSession(ctx context.Context, c *app.RequestContext) {
	var req createSessionRequest
	if err := c.BindJSON(&req); err != nil {
		c.AbortWithStatusJSON(consts.StatusUnprocessableEntity, utils.H{"detail": detailMalformedRequest})
		return
	}
	view, err := h.sessions.Create(ctx, req.Email)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// HandleLogout DELETE /logout，未知或缺失的令牌一律视为无效会话
func (h *SessionHandler) HandleLogout(ctx context.Context, c *app.RequestContext) {
	token := string(c.GetHeader(constants.SessionHeader))
	if err := h.sessions.Logout(ctx, token); err != nil {
		if errors.Is(err, service.ErrInvalidSession) {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"detail": detailLogoutInvalid})
			return
		}
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"status": "success", "message": "Logged out"})
}

// HandleUser GET /user
func (h *SessionHandler) HandleUser(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"email": currentSession(c).Email})
}

// HandleStatusCheck GET /session-status-check
func (h *SessionHandler) HandleStatusCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "success", "message": "ok"})
}
