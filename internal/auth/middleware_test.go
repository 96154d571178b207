package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireBearer(t *testing.T) {
	m := NewJWTManager(testSecret, time.Hour)
	h := m.RequireBearer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := ProfileFrom(r.Context())
		require.True(t, ok)
		w.Write([]byte(p.Username))
	}))

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := call("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `"missing-token"`, rec.Body.String())

	rec = call("Basic abc")
	assert.JSONEq(t, `"missing-token"`, rec.Body.String())

	rec = call("Bearer nope")
	assert.JSONEq(t, `"invalid-token"`, rec.Body.String())

	expired, _ := m.Generate(alice, time.Now().Add(-2*time.Hour))
	rec = call("Bearer " + expired)
	assert.JSONEq(t, `"expired-token"`, rec.Body.String())

	good, _ := m.Generate(alice, time.Now())
	rec = call("Bearer " + good)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}
