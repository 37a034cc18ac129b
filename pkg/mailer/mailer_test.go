/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package mailer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/httpclient"
)

func TestApiSenderPostsMessage(t *testing.T) {
	var got apiMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &apiSender{
		http:     httpclient.NewHttpClient(),
		endpoint: srv.URL,
		key:      "secret",
		from:     "cloudlab@example.com",
	}
	ok := s.Send([]string{"ops@example.com"}, "drift detected", "<b>drift</b>", "drift")
	assert.True(t, ok)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "cloudlab@example.com", got.From)
	assert.Equal(t, []string{"ops@example.com"}, got.To)
	assert.Equal(t, "drift detected", got.Subject)
}

func TestApiSenderFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		sender *apiSender
	}{
		{"rejected upstream", &apiSender{http: httpclient.NewHttpClient(), endpoint: srv.URL, key: "secret"}},
		{"missing endpoint", &apiSender{http: httpclient.NewHttpClient(), key: "secret"}},
		{"missing key", &apiSender{http: httpclient.NewHttpClient(), endpoint: srv.URL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.sender.Send([]string{"ops@example.com"}, "s", "h", "t"))
		})
	}
}

func TestSmtpSenderRequiresConfig(t *testing.T) {
	s := &smtpSender{port: 587}
	assert.False(t, s.Send([]string{"ops@example.com"}, "s", "h", "t"))
}

func TestNoopSenderDrops(t *testing.T) {
	assert.False(t, noopSender{}.Send([]string{"ops@example.com"}, "s", "h", "t"))
}
