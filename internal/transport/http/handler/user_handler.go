package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"instantclip/internal/domain"
	"instantclip/internal/feature/user"
	"instantclip/internal/service"
	httpez "instantclip/internal/transport/http/ez"
	mdw "instantclip/internal/transport/http/middleware"
)

type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(s *service.UserService) *UserHandler { return &UserHandler{users: s} }

func (h *UserHandler) MountAPI(g httpez.Groups) {
	httpez.RegisterAction(g.Private, httpez.Action[struct{}, user.MeResponse]{
		Method:  http.MethodGet,
		Path:    "/users/me",
		Binder:  httpez.BindNone,
		Handler: h.me,
	})
	httpez.RegisterAction(g.Private, httpez.Action[user.UpdateMeRequest, user.MeResponse]{
		Method:  http.MethodPatch,
		Path:    "/users/updateMe",
		Binder:  httpez.BindJSON,
		Handler: h.updateMe,
	})
	httpez.RegisterAction(g.Private, httpez.Action[struct{}, struct{}]{
		Method:  http.MethodDelete,
		Path:    "/users/deleteMe",
		Binder:  httpez.BindNone,
		Handler: h.deleteMe,
	})
}

func currentID(c *gin.Context) (string, error) {
	u, ok := mdw.CurrentUser(c)
	if !ok {
		return "", domain.Unauthenticated("you are not logged in")
	}
	return u.ID, nil
}

func (h *UserHandler) me(c *gin.Context, _ *struct{}) (user.MeResponse, error) {
	id, err := currentID(c)
	if err != nil {
		return user.MeResponse{}, err
	}
	u, err := h.users.Me(c.Request.Context(), id)
	if err != nil {
		return user.MeResponse{}, err
	}
	return user.MeResponse{User: user.ProfileOf(u)}, nil
}

func (h *UserHandler) updateMe(c *gin.Context, in *user.UpdateMeRequest) (user.MeResponse, error) {
	if in.HasPassword() {
		return user.MeResponse{}, domain.Validation("this route is not for password updates, please use /updatePassword")
	}
	id, err := currentID(c)
	if err != nil {
		return user.MeResponse{}, err
	}
	u, err := h.users.UpdateMe(c.Request.Context(), id, in.Update())
	if err != nil {
		return user.MeResponse{}, err
	}
	return user.MeResponse{User: user.ProfileOf(u)}, nil
}

func (h *UserHandler) deleteMe(c *gin.Context, _ *struct{}) (struct{}, error) {
	id, err := currentID(c)
	if err != nil {
		return struct{}{}, err
	}
	return struct{}{}, h.users.DeleteMe(c.Request.Context(), id)
}
