package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"instantclip/internal/domain"
)

type Resp struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// New 构造函数（保证 data 不为 null）
func New(code int, msg string, data interface{}) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

// OK 成功响应
func OK(data interface{}) Resp {
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

// Error 失败响应（可以传自定义 msg 覆盖默认）
func Error(code int, customMsg string) Resp {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	return New(code, msg, struct{}{})
}

const msgUnexpected = "something went wrong"

// Errors 统一把 error 渲染成响应；Debug 为 true 时附带内部细节（仅开发环境）
type Errors struct {
	Debug bool
	Log   *zap.Logger
}

type debugData struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Abort 按错误类型取状态码
func (e Errors) Abort(c *gin.Context, err error) {
	e.AbortStatus(c, StatusOf(domain.KindOf(err)), err)
}

// AbortStatus 可预期的业务错误直接返回 Msg；其他错误只返回通用文案并记日志
func (e Errors) AbortStatus(c *gin.Context, status int, err error) {
	msg := msgUnexpected
	var de *domain.Error
	if errors.As(err, &de) && de.Operational() && de.Msg != "" {
		msg = de.Msg
	} else if e.Log != nil {
		e.Log.Error("request failed",
			zap.String("rid", c.GetString(KeyRequestID)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}

	var data interface{}
	if e.Debug {
		data = debugData{Kind: domain.KindOf(err).String(), Detail: err.Error()}
	}
	c.AbortWithStatusJSON(status, New(status, msg, data))
}

// KeyRequestID 与 middleware.RequestID 写入 gin.Context 的 key 一致
const KeyRequestID = "X-Request-ID"
