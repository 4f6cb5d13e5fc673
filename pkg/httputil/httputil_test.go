package httputil_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/httputil"
	"github.com/pharmacore/pharmacore-backend/pkg/testutil"
)

func TestErrorWithAppError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, errors.NotFound("batch"))
	})

	rr := testutil.ExecuteRequest(handler, testutil.NewHTTPRequest(http.MethodGet, "/batches/x", nil))

	testutil.AssertStatus(t, rr, http.StatusNotFound)

	var resp httputil.Response
	testutil.ParseJSONBody(t, rr, &resp)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestErrorWithPlainError(t *testing.T) {
	// Infrastructure failures carry no AppError and must fall through
	// to a generic 500 without leaking the cause.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, fmt.Errorf("driver: bad connection"))
	})

	rr := testutil.ExecuteRequest(handler, testutil.NewHTTPRequest(http.MethodGet, "/batches", nil))

	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	testutil.AssertBodyContains(t, rr, "INTERNAL_ERROR")
	assert.NotContains(t, rr.Body.String(), "bad connection")
}

func TestJSONEnvelope(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	rr := testutil.ExecuteRequest(handler, testutil.NewHTTPRequest(http.MethodGet, "/health", nil))

	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"success":true`)
	testutil.AssertBodyContains(t, rr, "healthy")
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := httputil.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = httputil.GetRequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// Caller-supplied ID is propagated
	req := testutil.WithRequestID(testutil.NewHTTPRequest(http.MethodGet, "/", nil), "req-42")
	rr := testutil.ExecuteRequest(handler, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rr.Header().Get("X-Request-ID"))

	// Absent ID gets generated
	rr = testutil.ExecuteRequest(handler, testutil.NewHTTPRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
