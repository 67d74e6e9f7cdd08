package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func bodyEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Write(b)
	})
}

func TestValidateJSONContentType(t *testing.T) {
	h := ValidateJSONContentType(discardLogger())(bodyEcho())

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	assert.Equal(t, "Content-Type must be application/json", decodeMessage(t, rr))

	req = httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLimitBody(t *testing.T) {
	h := LimitBody(discardLogger(), 16)(bodyEcho())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"name":"x"}`)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"name":"x"}`, rr.Body.String(), "body is passed on intact")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"name":"much too long"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "Request body too large", decodeMessage(t, rr))

	// undeclared length is cut off at the cap
	req := httptest.NewRequest(http.MethodPut, "/api/users/1", strings.NewReader(`{"name":"much too long"}`))
	req.ContentLength = -1
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Len(t, rr.Body.String(), 16)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSanitizeInputs(t *testing.T) {
	h := SanitizeInputs(discardLogger())(bodyEcho())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/users?q=%3Cscript%3E", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/users?q=jane", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
