package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(ClientConfig{
		BaseURL:  srv.URL,
		DeviceID: "d-123",
		Secret:   "s-456",
		Timeout:  2 * time.Second,
		Logger:   logging.NewNoop(),
	})
	return client, srv
}

func TestFetchMessages(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/1/messages.json", r.URL.Path)
		require.Equal(t, "s-456", r.URL.Query().Get("secret"))
		require.Equal(t, "d-123", r.URL.Query().Get("device_id"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[
			{"id":10,"title":"Deploy done","message":"v1.2 is live","app":"CI","aid":7,"icon":"ci","date":1720000000,"priority":0,"acked":0},
			{"id":11,"message":"disk almost full","app":"Monitoring","aid":8,"date":1720000060,"priority":1,"acked":0}
		],"status":1}`))
	}))

	msgs, err := client.FetchMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	require.Equal(t, int64(10), msgs[0].ID)
	require.Equal(t, "Deploy done", msgs[0].Title)
	require.Equal(t, "v1.2 is live", msgs[0].Body)
	require.Equal(t, "CI", msgs[0].App)
	require.Equal(t, int64(7), msgs[0].AppID)
	require.Equal(t, "ci", msgs[0].Icon)

	require.Equal(t, int64(11), msgs[1].ID)
	require.Empty(t, msgs[1].Title)
	require.Equal(t, 1, msgs[1].Priority)
}

func TestFetchMessagesEmpty(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[],"status":1}`))
	}))

	msgs, err := client.FetchMessages(context.Background())
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestFetchMessagesServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":0,"errors":["device disabled"]}`))
	}))

	_, err := client.FetchMessages(context.Background())
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	require.Contains(t, httpErr.Body, "device disabled")
}

func TestFetchMessagesMalformedBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[`))
	}))

	_, err := client.FetchMessages(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestUpdateHead(t *testing.T) {
	var gotSecret, gotMessage string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/1/devices/d-123/update_highest_message.json", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotSecret = r.PostFormValue("secret")
		gotMessage = r.PostFormValue("message")
		_, _ = w.Write([]byte(`{"status":1}`))
	}))

	require.NoError(t, client.UpdateHead(context.Background(), 42))
	require.Equal(t, "s-456", gotSecret)
	require.Equal(t, "42", gotMessage)
}

func TestUpdateHeadServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":0}`))
	}))

	err := client.UpdateHead(context.Background(), 42)
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
}

func TestLogin(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/1/users/login.json", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "me@example.com", r.PostFormValue("email"))
		require.Equal(t, "hunter2", r.PostFormValue("password"))
		_, _ = w.Write([]byte(`{"status":1,"id":"u-1","secret":"account-secret"}`))
	}))

	result, err := client.Login(context.Background(), "me@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "account-secret", result.Secret)
	require.Equal(t, "u-1", result.ID)
}

func TestLoginRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":0,"errors":{"email":["is invalid"]}}`))
	}))

	_, err := client.Login(context.Background(), "bad", "creds")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejected")
}

func TestRegisterDevice(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/1/devices.json", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "account-secret", r.PostFormValue("secret"))
		require.Equal(t, "workstation", r.PostFormValue("name"))
		require.Equal(t, "O", r.PostFormValue("os"))
		_, _ = w.Write([]byte(`{"status":1,"id":"d-999"}`))
	}))

	result, err := client.RegisterDevice(context.Background(), "account-secret", "workstation")
	require.NoError(t, err)
	require.Equal(t, "d-999", result.ID)
}

func TestRequestTimeout(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	client.httpClient.Timeout = 50 * time.Millisecond

	_, err := client.FetchMessages(context.Background())
	require.Error(t, err)
}
