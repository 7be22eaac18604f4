package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiate(t *testing.T) {
	cases := []struct {
		accept string
		want   string
	}{
		{"", mimeHTML},
		{"application/json", mimeJSON},
		{"text/html", mimeHTML},
		{"*/*", mimeHTML},
		{"application/*", mimeJSON},
		{"text/html;q=0.5, application/json", mimeJSON},
		{"application/json;q=0.9, text/html", mimeHTML},
		{"application/json, text/html", mimeHTML},
		{"image/png", ""},
		{"text/html;q=0, */*;q=0.1", mimeJSON},
	}
	for _, tc := range cases {
		t.Run(tc.accept, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
			if tc.accept != "" {
				r.Header.Set("Accept", tc.accept)
			}
			assert.Equal(t, tc.want, negotiate(r, mimeHTML, mimeJSON))
		})
	}
}

func TestNegotiatedErrorRenderer_JSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("Accept", "application/json")

	resp, err := NegotiatedErrorRenderer("slow down")(r, NewResponse(http.StatusTooManyRequests))
	require.NoError(t, err)

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	assert.Equal(t, map[string]string{"message": "slow down"}, body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}

func TestNegotiatedErrorRenderer_PlainTextForHTML(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("Accept", "text/html")

	resp, err := NegotiatedErrorRenderer("slow down")(r, NewResponse(http.StatusTooManyRequests))
	require.NoError(t, err)
	assert.Equal(t, "slow down", string(resp.Body))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}
