package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that call a handler method directly.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// WithUser injects u as the signed-in user, bypassing the token middleware.
func WithUser(r *http.Request, u models.User) *http.Request {
	su := &auth.SessionUser{ID: u.ID, Name: u.Name, Email: u.Email}
	return r.WithContext(auth.WithUser(r.Context(), su))
}

// JSONRequest builds a request whose body is v encoded as JSON. A nil v
// sends no body.
func JSONRequest(method, target string, v any) *http.Request {
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		body = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, target, body)
	if v != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// Envelope is the decoded shape of every API response.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Error   *struct {
		Kind    string `json:"kind"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// DecodeEnvelope parses rec's body and fails the test if it is not JSON.
func DecodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return env
}

// DecodeData unmarshals the envelope's data into dst.
func DecodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) Envelope {
	t.Helper()
	env := DecodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v\n%s", err, rec.Body.String())
	}
	return env
}

// ErrorCode returns the error code of a failed response, or "".
func ErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := DecodeEnvelope(t, rec)
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

// Bearer sets an Authorization header carrying token.
func Bearer(r *http.Request, token string) *http.Request {
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}
