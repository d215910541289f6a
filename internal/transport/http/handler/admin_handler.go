package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"instantclip/internal/domain"
	"instantclip/internal/feature/user"
	"instantclip/internal/service"
	httpez "instantclip/internal/transport/http/ez"
)

var (
	staffRoles = []domain.Role{domain.RoleAdmin, domain.RoleDeveloper}
	adminRoles = []domain.Role{domain.RoleAdmin}
)

// AdminHandler 管理端用户接口；分组上已挂 Protect，这里按接口限定角色
type AdminHandler struct {
	users *service.UserService
}

func NewAdminHandler(s *service.UserService) *AdminHandler { return &AdminHandler{users: s} }

func (h *AdminHandler) MountAdmin(g httpez.Groups) {
	// --- GET /admin/v1/users  用户列表 ---
	httpez.RegisterAction(g.Private, httpez.Action[user.ListRequest, user.ListResponse]{
		Method:  http.MethodGet,
		Path:    "/users",
		Binder:  httpez.BindQuery,
		Roles:   staffRoles,
		Handler: h.list,
	})
	httpez.RegisterAction(g.Private, httpez.Action[user.IDParam, user.UserResponse]{
		Method:  http.MethodGet,
		Path:    "/users/:id",
		Binder:  httpez.BindURI,
		Roles:   staffRoles,
		Handler: h.get,
	})
	// --- PATCH /admin/v1/users/:id/role ---
	httpez.RegisterAction(g.Private, httpez.Action[user.SetRoleRequest, gin.H]{
		Method:  http.MethodPatch,
		Path:    "/users/:id/role",
		Binder:  httpez.BindJSON,
		Roles:   adminRoles,
		Handler: h.setRole,
	})
	// --- POST /admin/v1/users/:id/ban  封禁（停用） ---
	httpez.RegisterAction(g.Private, httpez.Action[user.IDParam, gin.H]{
		Method:  http.MethodPost,
		Path:    "/users/:id/ban",
		Binder:  httpez.BindURI,
		Roles:   adminRoles,
		Handler: h.ban,
	})
	// --- DELETE /admin/v1/users/:id  硬删除 ---
	httpez.RegisterAction(g.Private, httpez.Action[user.IDParam, gin.H]{
		Method:  http.MethodDelete,
		Path:    "/users/:id",
		Binder:  httpez.BindURI,
		Roles:   adminRoles,
		Handler: h.hardDelete,
	})
}

func (h *AdminHandler) list(c *gin.Context, in *user.ListRequest) (user.ListResponse, error) {
	q := in.Query()
	us, total, err := h.users.List(c.Request.Context(), q)
	if err != nil {
		return user.ListResponse{}, err
	}
	page, limit := q.Window()
	out := user.ListResponse{Total: total, Page: page, Limit: limit, Items: make([]user.AdminView, 0, len(us))}
	for i := range us {
		out.Items = append(out.Items, user.AdminViewOf(&us[i]))
	}
	return out, nil
}

func (h *AdminHandler) get(c *gin.Context, in *user.IDParam) (user.UserResponse, error) {
	u, err := h.users.Get(c.Request.Context(), in.ID)
	if err != nil {
		return user.UserResponse{}, err
	}
	return user.UserResponse{User: user.AdminViewOf(u)}, nil
}

func (h *AdminHandler) setRole(c *gin.Context, in *user.SetRoleRequest) (gin.H, error) {
	id := c.Param("id")
	if err := h.users.SetRole(c.Request.Context(), id, in.Role); err != nil {
		return nil, err
	}
	return gin.H{"id": id, "role": in.Role}, nil
}

func (h *AdminHandler) ban(c *gin.Context, in *user.IDParam) (gin.H, error) {
	if err := h.users.Ban(c.Request.Context(), in.ID); err != nil {
		return nil, err
	}
	return gin.H{"id": in.ID}, nil
}

func (h *AdminHandler) hardDelete(c *gin.Context, in *user.IDParam) (gin.H, error) {
	if err := h.users.HardDelete(c.Request.Context(), in.ID); err != nil {
		return nil, err
	}
	return gin.H{"id": in.ID}, nil
}
