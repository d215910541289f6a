package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"instantclip/internal/domain"
	"instantclip/internal/feature/user"
	"instantclip/internal/service"
	httpez "instantclip/internal/transport/http/ez"
	mdw "instantclip/internal/transport/http/middleware"
)

// 不论邮箱是否存在都返回同一句话
const msgResetSent = "if that email is registered, a reset token has been sent to it"

type AuthHandler struct {
	auth  *service.AuthService
	reset *service.ResetService
	log   *zap.Logger
}

func NewAuthHandler(a *service.AuthService, r *service.ResetService, l *zap.Logger) *AuthHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuthHandler{auth: a, reset: r, log: l}
}

func (h *AuthHandler) Priority() int { return 10 }

func (h *AuthHandler) MountAPI(g httpez.Groups) {
	httpez.RegisterAction(g.Public, httpez.Action[user.SignupRequest, user.SignupResponse]{
		Method:  http.MethodPost,
		Path:    "/users/signup",
		Binder:  httpez.BindJSON,
		Handler: h.signup,
	})
	httpez.RegisterAction(g.Public, httpez.Action[user.LoginRequest, user.TokenResponse]{
		Method:  http.MethodPost,
		Path:    "/users/login",
		Binder:  httpez.BindJSON,
		Handler: h.login,
	})
	httpez.RegisterAction(g.Public, httpez.Action[user.ForgotPasswordRequest, user.MessageResponse]{
		Method:  http.MethodPost,
		Path:    "/users/forgotPassword",
		Binder:  httpez.BindJSON,
		Handler: h.forgotPassword,
	})
	httpez.RegisterAction(g.Public, httpez.Action[user.ResetPasswordRequest, user.TokenResponse]{
		Method:  http.MethodPatch,
		Path:    "/users/resetPassword/:resetToken",
		Binder:  httpez.BindJSON,
		Status:  resetStatus,
		Handler: h.resetPassword,
	})
	httpez.RegisterAction(g.Private, httpez.Action[user.UpdatePasswordRequest, user.TokenResponse]{
		Method:  http.MethodPatch,
		Path:    "/users/updatePassword",
		Binder:  httpez.BindJSON,
		Handler: h.updatePassword,
	})
}

func (h *AuthHandler) signup(c *gin.Context, in *user.SignupRequest) (user.SignupResponse, error) {
	u, tok, err := h.auth.Signup(c.Request.Context(), in.Input())
	if err != nil {
		return user.SignupResponse{}, err
	}
	return user.SignupResponse{Token: tok, User: user.ProfileOf(u)}, nil
}

func (h *AuthHandler) login(c *gin.Context, in *user.LoginRequest) (user.TokenResponse, error) {
	tok, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Username: in.Username, Email: in.Email, Password: in.Password,
	})
	if err != nil {
		return user.TokenResponse{}, err
	}
	return user.TokenResponse{Token: tok}, nil
}

func (h *AuthHandler) forgotPassword(c *gin.Context, in *user.ForgotPasswordRequest) (user.MessageResponse, error) {
	err := h.reset.RequestReset(c.Request.Context(), in.Email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.log.Debug("reset requested for unknown email", zap.String("rid", c.GetString(mdw.KeyRequestID)))
	case err != nil:
		return user.MessageResponse{}, err
	}
	return user.MessageResponse{Message: msgResetSent}, nil
}

func (h *AuthHandler) resetPassword(c *gin.Context, in *user.ResetPasswordRequest) (user.TokenResponse, error) {
	tok, err := h.reset.ConsumeReset(c.Request.Context(), c.Param("resetToken"), in.Password, in.PasswordConfirm)
	if err != nil {
		return user.TokenResponse{}, err
	}
	return user.TokenResponse{Token: tok}, nil
}

func (h *AuthHandler) updatePassword(c *gin.Context, in *user.UpdatePasswordRequest) (user.TokenResponse, error) {
	me, ok := mdw.CurrentUser(c)
	if !ok {
		return user.TokenResponse{}, domain.Unauthenticated("you are not logged in")
	}
	tok, err := h.auth.UpdatePassword(c.Request.Context(), service.PasswordChange{
		UserID:          me.ID,
		CurrentPassword: in.PasswordCurrent,
		Password:        in.Password,
		PasswordConfirm: in.PasswordConfirm,
	})
	if err != nil {
		return user.TokenResponse{}, err
	}
	return user.TokenResponse{Token: tok}, nil
}

// resetStatus 重置接口的令牌错误是请求参数问题，返回 400 而不是 401
func resetStatus(k domain.Kind) int {
	if k == domain.KindTokenInvalid || k == domain.KindTokenExpired {
		return http.StatusBadRequest
	}
	return 0
}
