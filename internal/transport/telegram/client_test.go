package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/MilkyWatch/StockBox/internal/transport"
)

func TestClient_SendMessage_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, float64(42), body["chat_id"])
		require.Equal(t, "Milk is back", body["text"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "TOKEN")
	require.NoError(t, c.SendMessage(context.Background(), 42, "Milk is back"))
}

func TestClient_SendMessage_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "TOKEN")
	err := c.SendMessage(context.Background(), 42, "hi")
	require.Error(t, err)
	require.True(t, errors.Is(err, transport.ErrRecipientBlocked))
	require.True(t, transport.IsPermanent(err))
}

func TestClient_SendMessage_TooManyRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 5","parameters":{"retry_after":5}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "TOKEN")
	err := c.SendMessage(context.Background(), 42, "hi")
	require.Error(t, err)
	require.False(t, transport.IsPermanent(err))

	var apiErr *transport.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 429, apiErr.Code)
}

func TestClient_RecipientStatus(t *testing.T) {
	tests := []struct {
		name string
		resp string
		want transport.Status
	}{
		{"ok", `{"ok":true,"result":{"id":42}}`, transport.StatusOK},
		{"blocked", `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`, transport.StatusBlocked},
		{"not found", `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`, transport.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/botTOKEN/getChat", r.URL.Path)
				require.Equal(t, "42", r.URL.Query().Get("chat_id"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.resp))
			}))
			defer srv.Close()

			c := New(srv.URL, "TOKEN")
			st, err := c.RecipientStatus(context.Background(), 42)
			require.NoError(t, err)
			require.Equal(t, tt.want, st)
		})
	}
}
