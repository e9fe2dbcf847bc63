package xtream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lumacast/pairing-server-go/internal/errors"
)

func TestFlexInt(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  FlexInt
	}{
		{"number", `42`, 42},
		{"numeric string", `"42"`, 42},
		{"null", `null`, 0},
		{"empty string", `""`, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var fi FlexInt
			require.NoError(t, json.Unmarshal([]byte(tc.input), &fi))
			assert.Equal(t, tc.want, fi)
		})
	}

	t.Run("rejects non-numeric string", func(t *testing.T) {
		var fi FlexInt
		assert.Error(t, json.Unmarshal([]byte(`"abc"`), &fi))
	})
}

func TestCandidateBases(t *testing.T) {
	t.Run("bare host probes fallback ports", func(t *testing.T) {
		bases, err := candidateBases("srv.example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"http://srv.example.com:80", "http://srv.example.com:8080"}, bases)
	})

	t.Run("explicit port is taken as-is", func(t *testing.T) {
		bases, err := candidateBases("http://srv.example.com:8000/")
		require.NoError(t, err)
		assert.Equal(t, []string{"http://srv.example.com:8000"}, bases)
	})

	t.Run("https host is not port-probed", func(t *testing.T) {
		bases, err := candidateBases("https://srv.example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"https://srv.example.com"}, bases)
	})

	t.Run("empty host is rejected", func(t *testing.T) {
		_, err := candidateBases("  ")
		assert.Error(t, err)
	})
}

func TestStreamURL(t *testing.T) {
	acct := Account{Username: "u1", Password: "p1"}
	url := StreamURL("http://srv.example.com:8080/", acct, 123, "m3u8")
	assert.Equal(t, "http://srv.example.com:8080/u1/p1/123.m3u8", url)
}

func TestClient_GetCategories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/player_api.php", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("username"))
		assert.Equal(t, "p1", r.URL.Query().Get("password"))
		assert.Equal(t, "get_live_categories", r.URL.Query().Get("action"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"category_id":"7","category_name":"News"},{"category_id":8,"category_name":"Sports"}]`))
	}))
	defer server.Close()

	client := NewClient("test-agent", 5*time.Second)
	acct := Account{Host: server.URL, Username: "u1", Password: "p1"}

	categories, err := client.GetCategories(context.Background(), acct, "live")
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, FlexInt(7), categories[0].CategoryID)
	assert.Equal(t, "News", categories[0].CategoryName)
	assert.Equal(t, FlexInt(8), categories[1].CategoryID)
}

func TestClient_GetStreams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "get_live_streams", r.URL.Query().Get("action"))
		assert.Equal(t, "7", r.URL.Query().Get("category_id"))

		w.Write([]byte(`[{"stream_id":101,"name":"Channel One","stream_icon":"http://logo/1.png","category_id":"7"}]`))
	}))
	defer server.Close()

	client := NewClient("test-agent", 5*time.Second)
	acct := Account{Host: server.URL, Username: "u1", Password: "p1"}

	streams, err := client.GetStreams(context.Background(), acct, "live", "7")
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, "Channel One", streams[0].Name)
	assert.Equal(t, server.URL+"/u1/p1/101.m3u8", streams[0].URL)
}

func TestClient_VodStreamsUseMp4(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "get_vod_streams", r.URL.Query().Get("action"))
		w.Write([]byte(`[{"stream_id":"55","name":"A Movie","category_id":1}]`))
	}))
	defer server.Close()

	client := NewClient("test-agent", 5*time.Second)
	acct := Account{Host: server.URL, Username: "u1", Password: "p1"}

	streams, err := client.GetStreams(context.Background(), acct, "vod", "")
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, server.URL+"/u1/p1/55.mp4", streams[0].URL)
}

func TestClient_RejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_info":{"status":"error"}}`))
	}))
	defer server.Close()

	client := NewClient("test-agent", 5*time.Second)
	acct := Account{Host: server.URL, Username: "u1", Password: "bad"}

	_, err := client.GetCategories(context.Background(), acct, "live")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeExternal, appErr.Code)
}

func TestClient_UnexpectedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer server.Close()

	client := NewClient("test-agent", 5*time.Second)
	acct := Account{Host: server.URL, Username: "u1", Password: "p1"}

	_, err := client.GetCategories(context.Background(), acct, "live")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeExternal, appErr.Code)
}

func TestClient_UpstreamDown(t *testing.T) {
	client := NewClient("test-agent", 100*time.Millisecond)
	acct := Account{Host: "http://127.0.0.1:1", Username: "u1", Password: "p1"}

	_, err := client.GetCategories(context.Background(), acct, "live")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeExternal, appErr.Code)
}
