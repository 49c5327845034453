package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolorder/internal/adapter/memstore"
	"poolorder/internal/config"
	"poolorder/internal/domain/identity"
	"poolorder/internal/server"
	chatservice "poolorder/internal/service/chat"
	memberservice "poolorder/internal/service/member"
	requestservice "poolorder/internal/service/request"
)

// tokenVerifier resolves a bearer token of the form "uid" to that identity.
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (identity.User, error) {
	if token == "invalid" {
		return identity.User{}, errors.New("token rejected")
	}
	return identity.User{UID: token, DisplayName: token}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store := memstore.New()
	requests := requestservice.NewService(store, requestservice.Config{})
	ledger := memberservice.NewLedger(store, store)
	chats := chatservice.NewService(store, ledger, store, nil, nil, nil, chatservice.Config{})

	srv := server.NewServer(
		config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			CorsOrigins:  []string{"*"},
		},
		nil,
		tokenVerifier{},
		true,
		requests,
		ledger,
		chats,
	)
	return srv.Router()
}

func do(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), into))
}

func createRequest(t *testing.T, router http.Handler, token string) string {
	t.Helper()

	w := do(t, router, http.MethodPost, "/api/requests", token, map[string]interface{}{
		"item":     "groceries",
		"platform": "QuickMart",
		"lat":      12.9716,
		"lng":      77.5946,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestCreateRequest(t *testing.T) {
	router := newTestRouter(t)

	t.Run("authenticated owner", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/requests", "alice", map[string]interface{}{
			"item":             "groceries",
			"platform":         "QuickMart",
			"lat":              12.9716,
			"lng":              77.5946,
			"expiresInMinutes": 30,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var created struct {
			ID          string `json:"id"`
			UID         string `json:"uid"`
			MemberCount int    `json:"memberCount"`
		}
		decode(t, w, &created)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "alice", created.UID)
		assert.Equal(t, 1, created.MemberCount)
	})

	t.Run("missing coordinates", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/requests", "alice", map[string]interface{}{
			"item":     "groceries",
			"platform": "QuickMart",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid ttl", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/requests", "alice", map[string]interface{}{
			"item":             "groceries",
			"platform":         "QuickMart",
			"lat":              12.9716,
			"lng":              77.5946,
			"expiresInMinutes": 2,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no token falls back to anonymous", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/requests", "", map[string]interface{}{
			"item":     "groceries",
			"platform": "QuickMart",
			"lat":      12.9716,
			"lng":      77.5946,
		})
		require.Equal(t, http.StatusOK, w.Code)

		var created struct {
			UID string `json:"uid"`
		}
		decode(t, w, &created)
		assert.Equal(t, "anon", created.UID)
	})

	t.Run("rejected token falls back to anonymous", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/requests", "invalid", map[string]interface{}{
			"item":     "groceries",
			"platform": "QuickMart",
			"lat":      12.9716,
			"lng":      77.5946,
		})
		require.Equal(t, http.StatusOK, w.Code)

		var created struct {
			UID string `json:"uid"`
		}
		decode(t, w, &created)
		assert.Equal(t, "anon", created.UID)
	})
}

func TestNearby(t *testing.T) {
	router := newTestRouter(t)
	createRequest(t, router, "alice")

	t.Run("requires coordinates", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/requests/nearby", "bob", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("excludes the caller's own requests", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/requests/nearby?lat=12.9716&lng=77.5946&radiusKm=1", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var found []struct {
			ID string `json:"id"`
		}
		decode(t, w, &found)
		assert.Empty(t, found)
	})

	t.Run("finds other users' requests", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/requests/nearby?lat=12.9716&lng=77.5946&radiusKm=1", "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var found []struct {
			ID        string  `json:"id"`
			DistanceM float64 `json:"distanceInM"`
		}
		decode(t, w, &found)
		require.Len(t, found, 1)
		assert.Less(t, found[0].DistanceM, 1000.0)
	})
}

func TestMembershipFlow(t *testing.T) {
	router := newTestRouter(t)
	id := createRequest(t, router, "alice")

	msgPath := fmt.Sprintf("/api/messages/%s", id)

	t.Run("stranger is rejected from chat", func(t *testing.T) {
		w := do(t, router, http.MethodGet, msgPath, "bob", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = do(t, router, http.MethodPost, msgPath, "bob", map[string]string{"text": "hi"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("joining unlocks chat", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/requests/"+id+"/join", "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, router, http.MethodGet, "/api/requests/"+id+"/membership", "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var membership struct {
			Joined bool `json:"joined"`
		}
		decode(t, w, &membership)
		assert.True(t, membership.Joined)

		w = do(t, router, http.MethodPost, msgPath, "bob", map[string]string{"text": "count me in"})
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, router, http.MethodGet, msgPath, "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var page struct {
			Items []struct {
				Text string `json:"text"`
				UID  string `json:"uid"`
			} `json:"items"`
			HasMore bool `json:"hasMore"`
		}
		decode(t, w, &page)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "count me in", page.Items[0].Text)
		assert.Equal(t, "bob", page.Items[0].UID)
	})

	t.Run("leaving locks chat again", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/requests/"+id+"/leave", "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, router, http.MethodGet, msgPath, "bob", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("owner chats without joining", func(t *testing.T) {
		w := do(t, router, http.MethodPost, msgPath, "alice", map[string]string{"text": "welcome"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown request", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/requests/nope/join", "bob", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = do(t, router, http.MethodGet, "/api/messages/nope", "bob", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCloseAndExpiry(t *testing.T) {
	router := newTestRouter(t)
	id := createRequest(t, router, "alice")

	t.Run("only the owner closes", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/requests/"+id+"/close", "bob", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("closed requests answer gone", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/requests/"+id+"/close", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, router, http.MethodPost, "/api/requests/"+id+"/join", "bob", nil)
		assert.Equal(t, http.StatusGone, w.Code)

		w = do(t, router, http.MethodPost, "/api/messages/"+id, "alice", map[string]string{"text": "too late"})
		assert.Equal(t, http.StatusGone, w.Code)
	})
}

func TestDeleteRequest(t *testing.T) {
	router := newTestRouter(t)
	id := createRequest(t, router, "alice")

	w := do(t, router, http.MethodDelete, "/api/requests/"+id, "bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, http.MethodDelete, "/api/requests/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/messages/"+id, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessageQueryValidation(t *testing.T) {
	router := newTestRouter(t)
	id := createRequest(t, router, "alice")

	w := do(t, router, http.MethodGet, "/api/messages/"+id+"?before=garbage", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/messages/"+id+"?limit=abc", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/messages/"+id+"?limit=-1", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMine(t *testing.T) {
	router := newTestRouter(t)
	createRequest(t, router, "alice")
	createRequest(t, router, "bob")

	w := do(t, router, http.MethodGet, "/api/requests/mine", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var mine []struct {
		UID string `json:"uid"`
	}
	decode(t, w, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, "alice", mine[0].UID)
}
