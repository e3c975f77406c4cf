package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-accounts/atlas-accounts/internal/notify"
	_ "github.com/atlas-accounts/atlas-accounts/testing"
)

func TestHTTPDelivererSuccess(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := notify.NewHTTPDeliverer(srv.URL, srv.Client())
	html, text := notify.RenderActivationEmail("4821")
	err := d.Deliver(context.Background(), notify.Email{
		To:          "a@x.com",
		Subject:     notify.DefaultSubject,
		Code:        "4821",
		HTMLContent: html,
		TextContent: text,
	})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", received["to"])
	assert.Contains(t, received["html_content"], "4821")
	assert.Contains(t, received["text_content"], "4821")
}

func TestHTTPDelivererNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := notify.NewHTTPDeliverer(srv.URL, srv.Client())
	err := d.Deliver(context.Background(), notify.Email{To: "a@x.com", Code: "4821"})
	assert.Error(t, err)
}

func TestHTTPDelivererConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	d := notify.NewHTTPDeliverer(srv.URL, &http.Client{Timeout: time.Second})
	err := d.Deliver(context.Background(), notify.Email{To: "a@x.com", Code: "4821"})
	assert.Error(t, err)
}

func TestConsoleDeliverer(t *testing.T) {
	var buf bytes.Buffer
	d := notify.NewConsoleDeliverer(&buf)

	err := d.Deliver(context.Background(), notify.Email{
		To:      "a@x.com",
		Subject: notify.DefaultSubject,
		Code:    "4821",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "a@x.com")
	assert.Contains(t, out, "4821")
	assert.Contains(t, out, "expire in 1 minute")
}

func TestRenderActivationEmail(t *testing.T) {
	html, text := notify.RenderActivationEmail("0042")
	assert.Contains(t, html, "0042")
	assert.Contains(t, text, "0042")
}
