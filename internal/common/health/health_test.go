package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStartupCompleteChecker(t *testing.T) {
	checker := NewStartupCompleteChecker()
	assert.Error(t, checker.Check())
	checker.MarkComplete()
	assert.NoError(t, checker.Check())
}

func TestMultiChecker(t *testing.T) {
	healthy := CheckerFunc(func() error { return nil })
	unhealthyA := CheckerFunc(func() error { return errors.New("a is down") })
	unhealthyB := CheckerFunc(func() error { return errors.New("b is down") })

	mc := NewMultiChecker(healthy)
	assert.NoError(t, mc.Check())

	mc.Add(unhealthyA)
	mc.Add(unhealthyB)
	err := mc.Check()
	assert.ErrorContains(t, err, "a is down")
	assert.ErrorContains(t, err, "b is down")
}

func TestHealthCheckHttpHandler(t *testing.T) {
	checker := NewStartupCompleteChecker()
	mux := http.NewServeMux()
	SetupHttpMux(mux, checker)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "startup is not complete", rec.Body.String())

	checker.MarkComplete()
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
