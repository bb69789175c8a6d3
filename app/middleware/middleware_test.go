package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beego/beego/v2/server/web/context"
	"github.com/stretchr/testify/assert"
)

func newContext(method, origin string) (*context.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/api/documents", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()

	ctx := context.NewContext()
	ctx.Reset(rec, req)
	return ctx, rec
}

func TestCORS_AllowedOrigin(t *testing.T) {
	ctx, rec := newContext(http.MethodGet, "http://localhost:3000")
	CORS([]string{"http://localhost:3000"})(ctx)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_UnknownOrigin(t *testing.T) {
	ctx, rec := newContext(http.MethodGet, "http://evil.example")
	CORS([]string{"http://localhost:3000"})(ctx)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	ctx, rec := newContext(http.MethodOptions, "http://localhost:3000")
	CORS([]string{"http://localhost:3000"})(ctx)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
