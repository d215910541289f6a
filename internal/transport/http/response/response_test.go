package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"instantclip/internal/domain"
)

func render(t *testing.T, e Errors, err error) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	e.Abort(c, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusOf(domain.KindValidation))
	assert.Equal(t, http.StatusBadRequest, StatusOf(domain.KindConflict))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(domain.KindTokenExpired))
	assert.Equal(t, http.StatusForbidden, StatusOf(domain.KindForbidden))
	assert.Equal(t, http.StatusNotFound, StatusOf(domain.KindNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(domain.KindDelivery))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(domain.KindInternal))
}

func TestAbort_OperationalShowsMessage(t *testing.T) {
	code, body := render(t, Errors{}, domain.Conflict("duplicate value for field email, already in use"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.EqualValues(t, http.StatusBadRequest, body["code"])
	assert.Equal(t, "duplicate value for field email, already in use", body["msg"])
	assert.Equal(t, map[string]any{}, body["data"])
}

func TestAbort_UnexpectedIsGeneric(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	e := Errors{Log: zap.New(core)}

	code, body := render(t, e, errors.New("dial tcp 10.0.0.1:5432: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "something went wrong", body["msg"])
	assert.NotContains(t, body["data"], "detail")
	assert.Equal(t, 1, logs.Len())

	// 开发环境附带细节
	e.Debug = true
	_, body = render(t, e, domain.Internal("query user failed", errors.New("boom")))
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "internal", data["kind"])
	assert.Contains(t, data["detail"], "boom")
}
