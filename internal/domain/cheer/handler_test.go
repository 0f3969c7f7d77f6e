package cheer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheers/cheers-api/internal/domain/cheer"
	"github.com/cheers/cheers-api/internal/middleware"
	"github.com/cheers/cheers-api/internal/pkg/response"
)

func asAccount(account string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), account, "member")))
		})
	}
}

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestHandlerRecognize(t *testing.T) {
	f := newFixture(t)
	router := cheer.NewHandler(f.svc).Routes(asAccount("alice"))

	w, env := post(t, router, "/", `{"to_account":"bob","points":20,"message":"thanks"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)

	w, env = post(t, router, "/", `{"to_account":"alice","points":5}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SELF_RECOGNITION", env.Error.Code)

	w, env = post(t, router, "/", `{"to_account":"bob","points":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "points")

	_, err := f.svc.Recognize(context.Background(), cheer.RecognizeInput{From: "alice", To: "carol", Points: 50})
	require.NoError(t, err)

	w, env = post(t, router, "/", `{"to_account":"bob","points":40}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "QUOTA_EXCEEDED", env.Error.Code)
	assert.Equal(t, "30", env.Error.Details["remaining"])
	assert.Equal(t, "100", env.Error.Details["allotment"])
}

func TestHandlerToggleLike(t *testing.T) {
	f := newFixture(t)
	c := recognize(t, f, "alice", "bob", 10)
	router := cheer.NewHandler(f.svc).Routes(asAccount("carol"))

	w, env := post(t, router, "/"+c.ID.String()+"/like", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, "liked", data["action"])
	assert.Equal(t, float64(1), data["like_count"])

	w, _ = post(t, router, "/not-a-uuid/like", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
