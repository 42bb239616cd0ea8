package bitrix_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Pusher91/fieldbutton/internal/bitrix"
	"github.com/Pusher91/fieldbutton/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPayload = domain.FieldTypePayload{
	UserTypeID:  "archivo_electronico_button",
	Handler:     "https://svc.example.com/render.js",
	Title:       "Archivo electrónico",
	Description: "Botón que abre un enlace personalizado en una nueva ventana",
}

func newClient(srv *httptest.Server, timeout time.Duration) (*bitrix.Client, string) {
	c := bitrix.New(
		bitrix.WithScheme("http"),
		bitrix.WithHTTPClient(srv.Client()),
		bitrix.WithTimeout(timeout),
	)
	return c, strings.TrimPrefix(srv.URL, "http://")
}

func TestClient_AddUserFieldType_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/userfieldtype.add", r.URL.Path)
		assert.Equal(t, "secret-token", r.URL.Query().Get("auth"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got domain.FieldTypePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, testPayload, got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":true,"time":{"start":1}}`))
	}))
	defer srv.Close()

	c, host := newClient(srv, time.Second)
	resp, err := c.AddUserFieldType(context.Background(), host, "secret-token", "userfieldtype.add", testPayload)
	require.NoError(t, err)
	assert.Equal(t, "userfieldtype.add", resp.Endpoint)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `true`, string(resp.Result))
}

func TestClient_AddUserFieldType_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"ERROR_METHOD_NOT_FOUND","error_description":"Method not found!"}` + "\n"))
	}))
	defer srv.Close()

	c, host := newClient(srv, time.Second)
	_, err := c.AddUserFieldType(context.Background(), host, "tok", "userfield.type.add", testPayload)
	require.Error(t, err)

	var apiErr *bitrix.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "userfield.type.add", apiErr.Endpoint)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, `{"error":"ERROR_METHOD_NOT_FOUND","error_description":"Method not found!"}`, string(apiErr.Payload))
	assert.True(t, bitrix.IsAPIError(err))
	assert.False(t, bitrix.IsTransportError(err))
}

func TestClient_AddUserFieldType_FalsyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":false,"error":"X"}`))
	}))
	defer srv.Close()

	c, host := newClient(srv, time.Second)
	_, err := c.AddUserFieldType(context.Background(), host, "tok", "userfieldtype.add", testPayload)

	var apiErr *bitrix.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, `{"result":false,"error":"X"}`, string(apiErr.Payload))
}

func TestClient_AddUserFieldType_ServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, host := newClient(srv, time.Second)
	_, err := c.AddUserFieldType(context.Background(), host, "tok", "userfieldtype.add", testPayload)

	var tErr *bitrix.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, http.StatusBadGateway, tErr.StatusCode)
	assert.Contains(t, tErr.Message, "upstream down")
}

func TestClient_AddUserFieldType_NonJSONIsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html>Not Found</html>"))
	}))
	defer srv.Close()

	c, host := newClient(srv, time.Second)
	_, err := c.AddUserFieldType(context.Background(), host, "tok", "userfieldtype.add.json", testPayload)

	var apiErr *bitrix.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, host, apiErr.Domain)
	assert.Equal(t, `"<html>Not Found</html>"`, string(apiErr.Payload))
	assert.True(t, json.Valid(apiErr.Payload))
}

func TestClient_AddUserFieldType_OddBodiesAreRejections(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		payload string
	}{
		{"empty 401", http.StatusUnauthorized, "", `""`},
		{"no content", http.StatusNoContent, "", `""`},
		{"top-level array", http.StatusOK, `[1,2]`, `[1,2]`},
		{"top-level string", http.StatusOK, `"ok"`, `"ok"`},
		{"result absent", http.StatusBadRequest, `{"error":"INVALID"}`, `{"error":"INVALID"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, host := newClient(srv, time.Second)
			_, err := c.AddUserFieldType(context.Background(), host, "tok", "userfieldtype.add", testPayload)

			var apiErr *bitrix.APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.payload, string(apiErr.Payload))
		})
	}
}

func TestClient_AddUserFieldType_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, host := newClient(srv, 50*time.Millisecond)
	_, err := c.AddUserFieldType(context.Background(), host, "super-secret-token", "userfieldtype.add", testPayload)

	var tErr *bitrix.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, 0, tErr.StatusCode)
	assert.Equal(t, "timeout of 50ms exceeded", tErr.Message)
	assert.NotContains(t, err.Error(), "super-secret-token")
}

func TestClient_AddUserFieldType_ConnectionRefusedHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, host := newClient(srv, time.Second)
	srv.Close()

	_, err := c.AddUserFieldType(context.Background(), host, "super-secret-token", "userfieldtype.add", testPayload)
	require.Error(t, err)
	assert.True(t, bitrix.IsTransportError(err))
	assert.NotContains(t, err.Error(), "super-secret-token")
}

func TestClient_MethodURL(t *testing.T) {
	c := bitrix.New()
	assert.Equal(t,
		"https://crm.biplaza.es/rest/userfieldtype.add?auth=a%2Bb",
		c.MethodURL("crm.biplaza.es", "userfieldtype.add", "a+b"))
}

func TestTruthy(t *testing.T) {
	truthy := []string{`true`, `1`, `-2.5`, `"x"`, `{}`, `[]`, `{"ID":1}`}
	for _, v := range truthy {
		assert.True(t, bitrix.Truthy(json.RawMessage(v)), v)
	}

	falsy := []string{``, `null`, `false`, `0`, `""`, ` `, `0.0`}
	for _, v := range falsy {
		assert.False(t, bitrix.Truthy(json.RawMessage(v)), v)
	}
}
