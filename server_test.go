package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"i4.energy/across/atgw/modem"
)

// newTestServer returns a Server backed by a running Client on an in-memory
// transport.
func newTestServer(t *testing.T) (*Server, *modem.TestTransport) {
	t.Helper()
	ctrl := gomock.NewController(t)

	transport := modem.NewTestTransport()
	dialer := modem.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(transport, nil)

	config, err := modem.NewConfigBuilder().
		WithDialer(dialer).
		WithDefaultTimeout(modem.Ticks(2 * time.Second)).
		Build()
	require.NoError(t, err)

	c, err := modem.New(context.Background(), config)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go c.Loop(ctx, time.Millisecond)
	t.Cleanup(func() {
		cancel()
		c.Close()
	})

	return &Server{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Client: c}, transport
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

type atResponse struct {
	ID       string `json:"id"`
	Result   string `json:"result"`
	Response string `json:"response"`
}

func decodeAT(t *testing.T, rec *httptest.ResponseRecorder) atResponse {
	t.Helper()
	var resp atResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Message
}

func TestServer_AT(t *testing.T) {
	t.Run("Returns the modem response", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply("AT+GMR\r\n", "AT version:2.2.0.0\r\nSDK version:v4.4\r\nOK\r\n")

		rec := do(t, s, http.MethodPost, "/at", `{"command":"AT+GMR"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeAT(t, rec)
		assert.Equal(t, "ok", resp.Result)
		assert.Equal(t, "AT version:2.2.0.0\nSDK version:v4.4\n", resp.Response)

		id, err := uuid.Parse(resp.ID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
	})

	t.Run("Line terminator is normalized", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply("AT\r\n", "OK\r\n")

		rec := do(t, s, http.MethodPost, "/at", `{"command":"AT\r\n"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"AT\r\n"}, transport.Writes())
	})

	t.Run("Modem error", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply("AT+CWJAP?\r\n", "ERROR\r\n")

		rec := do(t, s, http.MethodPost, "/at", `{"command":"AT+CWJAP?"}`)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "error", decodeAT(t, rec).Result)
	})

	t.Run("Timeout", func(t *testing.T) {
		s, _ := newTestServer(t)

		rec := do(t, s, http.MethodPost, "/at", `{"command":"AT+RST","timeout_ms":20}`)

		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		assert.Equal(t, "timeout", decodeAT(t, rec).Result)
	})

	t.Run("Validation", func(t *testing.T) {
		s, transport := newTestServer(t)

		for _, body := range []string{`{"command":""}`, `{"command":"\r\n"}`, `{"command":"AT","timeout_ms":-1}`, `not json`} {
			rec := do(t, s, http.MethodPost, "/at", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
		assert.Empty(t, transport.Writes())
	})

	t.Run("Method not allowed", func(t *testing.T) {
		s, _ := newTestServer(t)

		rec := do(t, s, http.MethodGet, "/at", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
	t.Run("Closed modem", func(t *testing.T) {
		s, transport := newTestServer(t)
		require.NoError(t, s.Client.Close())

		rec := do(t, s, http.MethodPost, "/at", `{"command":"AT"}`)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, decodeMessage(t, rec), modem.ErrAlreadyClosed.Error())
		assert.Empty(t, transport.Writes())
	})
}

func TestServer_Publish(t *testing.T) {
	t.Run("Publishes the payload", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply("AT+MQTTPUBRAW=0,\"dev/1/state\",2,1,1\r\n", "OK\r\n>")
		transport.Reply("on", "\r\n+MQTTPUB:OK\r\n")

		rec := do(t, s, http.MethodPost, "/mqtt/publish", `{"topic":"dev/1/state","payload":"on","qos":1,"retain":true}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"AT+MQTTPUBRAW=0,\"dev/1/state\",2,1,1\r\n", "on"}, transport.Writes())

		var resp struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.NotEmpty(t, resp.ID)
	})

	t.Run("Broker rejects", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply("AT+MQTTPUBRAW=0,\"t\",1,0,0\r\n", "OK\r\n>")
		transport.Reply("x", "\r\n+MQTTPUB:FAIL\r\n")

		rec := do(t, s, http.MethodPost, "/mqtt/publish", `{"topic":"t","payload":"x"}`)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("Closed modem", func(t *testing.T) {
		s, _ := newTestServer(t)
		require.NoError(t, s.Client.Close())

		rec := do(t, s, http.MethodPost, "/mqtt/publish", `{"topic":"t","payload":"x"}`)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, decodeMessage(t, rec), modem.ErrAlreadyClosed.Error())
	})

	t.Run("Validation", func(t *testing.T) {
		s, transport := newTestServer(t)

		for _, body := range []string{`{"payload":"x"}`, `{"topic":"t","qos":3}`, `{"topic":"t","qos":-1}`, `[`} {
			rec := do(t, s, http.MethodPost, "/mqtt/publish", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
		assert.Empty(t, transport.Writes())
	})
}

func TestServer_HTTPGet(t *testing.T) {
	t.Run("Relays the body", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply("AT+HTTPCLIENT=2,0,\"http://example.com/fw\",,,1\r\n",
			"ContentRange:bytes 0-6/7\r\n+HTTPCLIENT:7,ab\r\ncd\r\r\nOK\r\n")

		rec := do(t, s, http.MethodGet, "/http?url=http://example.com/fw", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ab\r\ncd\r", rec.Body.String())
		assert.Equal(t, "7", rec.Header().Get("X-Content-Total"))
		assert.Empty(t, rec.Header().Get("X-Truncated"))
		assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	})

	t.Run("Fetch fails", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.Reply("AT+HTTPCLIENT=2,0,\"http://example.com/x\",,,1\r\n", "ERROR\r\n")

		rec := do(t, s, http.MethodGet, "/http?url=http://example.com/x", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("Closed modem", func(t *testing.T) {
		s, _ := newTestServer(t)
		require.NoError(t, s.Client.Close())

		rec := do(t, s, http.MethodGet, "/http?url=http://example.com/x", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("Missing url", func(t *testing.T) {
		s, _ := newTestServer(t)

		rec := do(t, s, http.MethodGet, "/http", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		result modem.Result
		want   int
	}{
		{modem.ResultOK, http.StatusOK},
		{modem.ResultError, http.StatusBadGateway},
		{modem.ResultTimeout, http.StatusGatewayTimeout},
		{modem.ResultOutOfMemory, http.StatusInsufficientStorage},
		{modem.ResultClosed, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.result.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.result))
		})
	}
}
