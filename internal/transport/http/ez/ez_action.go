package ez

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"instantclip/internal/domain"
	mdw "instantclip/internal/transport/http/middleware"
	resp "instantclip/internal/transport/http/response"
)

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindURI   Binder = "uri"   // 从路径参数绑定（`uri:"id"`）
	BindNone  Binder = "none"  // 不绑定
)

// EZ 在一个路由分组上注册 Action，错误统一经 resp.Errors 渲染
type EZ struct {
	g    *gin.RouterGroup
	errs resp.Errors
}

func New(g *gin.RouterGroup, errs resp.Errors) EZ { return EZ{g: g, errs: errs} }

func (e EZ) Errors() resp.Errors { return e.errs }

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method string        // "GET" | "POST" | "PATCH" | "PUT" | "DELETE"
	Path   string        // 例："/login"、"/users/:id/role"
	Binder Binder        // 绑定方式
	Roles  []domain.Role // 非空时挂 RequireRole，分组上必须已有 Protect
	// Status 覆盖默认的错误状态码映射，返回 0 表示使用默认
	Status  func(k domain.Kind) int
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		var in I
		if err := bind(c, a.Binder, &in); err != nil {
			e.errs.Abort(c, err)
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			status := 0
			if a.Status != nil {
				status = a.Status(domain.KindOf(err))
			}
			if status == 0 {
				status = resp.StatusOf(domain.KindOf(err))
			}
			e.errs.AbortStatus(c, status, err)
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	}

	handlers := make([]gin.HandlerFunc, 0, 2)
	if len(a.Roles) > 0 {
		handlers = append(handlers, mdw.RequireRole(e.errs, a.Roles...))
	}
	handlers = append(handlers, h)

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, handlers...)
	case http.MethodPut:
		e.g.PUT(a.Path, handlers...)
	case http.MethodPatch:
		e.g.PATCH(a.Path, handlers...)
	case http.MethodDelete:
		e.g.DELETE(a.Path, handlers...)
	default: // 默认 POST
		e.g.POST(a.Path, handlers...)
	}
}

func bind(c *gin.Context, b Binder, in any) error {
	var err error
	switch b {
	case BindJSON:
		err = c.ShouldBindJSON(in)
		if errors.Is(err, io.EOF) {
			return domain.Validation("request body is required")
		}
	case BindQuery:
		err = c.ShouldBindQuery(in)
	case BindURI:
		err = c.ShouldBindUri(in)
	default: // BindNone: 不绑定
	}
	if err == nil {
		return nil
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return domain.Validation("request body too large")
	}
	return domain.Validation("invalid request: " + err.Error())
}

// Groups 同一前缀下的两个分组：Public 无需登录，Private 已挂 Protect
type Groups struct {
	Public  EZ
	Private EZ
}
