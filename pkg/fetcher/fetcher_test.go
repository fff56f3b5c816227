/*
 * Copyright 2025 Rally Tactical Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package fetcher

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rallytac/magellan/pkg/logger"
	"github.com/rallytac/magellan/pkg/models"
)

const testKey = "Ssdp/urn:test:1/usn-1/dev-1"

func configBody(t *testing.T, version uint64, ids ...string) []byte {
	t.Helper()

	cfg := models.DeviceConfiguration{Version: version}

	for _, id := range ids {
		cfg.Talkgroups = append(cfg.Talkgroups, models.Talkgroup{ID: id, Name: "tg-" + id})
	}

	data, err := json.Marshal(&cfg)
	require.NoError(t, err)

	return data
}

func insecureClient(t *testing.T) *Client {
	t.Helper()

	c, err := New(models.RestLink{VerifyPeer: false}, logger.NewTestLogger())
	require.NoError(t, err)

	return c
}

func TestFetchParsesAndStampsProvenance(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(configBody(t, 7, "A", "B"))
	}))
	defer srv.Close()

	cfg, err := insecureClient(t).Fetch(context.Background(), srv.URL+"/config", testKey)
	require.NoError(t, err)

	assert.EqualValues(t, 7, cfg.Version)
	assert.Equal(t, testKey, cfg.DiscovererKey)
	require.Len(t, cfg.Talkgroups, 2)

	for _, tg := range cfg.Talkgroups {
		assert.Equal(t, testKey, tg.DeviceKey)
	}
}

func TestFetchRejectsNon2xx(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := insecureClient(t).Fetch(context.Background(), srv.URL, testKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, errHTTPStatus)
}

func TestFetchRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := insecureClient(t).Fetch(context.Background(), srv.URL, testKey)
	require.Error(t, err)
}

func TestFetchRejectsEmptyBody(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	_, err := insecureClient(t).Fetch(context.Background(), srv.URL, testKey)
	assert.ErrorIs(t, err, errEmptyBody)
}

func TestFetchFailsWithoutTrust(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(configBody(t, 1))
	}))
	defer srv.Close()

	c, err := New(models.RestLink{VerifyPeer: true, VerifyHost: true}, logger.NewTestLogger())
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), srv.URL, testKey)
	assert.Error(t, err, "self-signed server must be rejected without a CA bundle")
}

func TestFetchVerifiesAgainstCABundle(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(configBody(t, 3, "A"))
	}))
	defer srv.Close()

	bundle := filepath.Join(t.TempDir(), "ca.pem")
	pemData := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(bundle, pemData, 0o600))

	c, err := New(models.RestLink{
		VerifyPeer: true,
		VerifyHost: true,
		CaBundle:   bundle,
	}, logger.NewTestLogger())
	require.NoError(t, err)

	cfg, err := c.Fetch(context.Background(), srv.URL, testKey)
	require.NoError(t, err)
	assert.EqualValues(t, 3, cfg.Version)
}

func TestFetchVerifyPeerWithoutHost(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(configBody(t, 4))
	}))
	defer srv.Close()

	bundle := filepath.Join(t.TempDir(), "ca.pem")
	pemData := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(bundle, pemData, 0o600))

	c, err := New(models.RestLink{
		VerifyPeer: true,
		VerifyHost: false,
		CaBundle:   bundle,
	}, logger.NewTestLogger())
	require.NoError(t, err)

	cfg, err := c.Fetch(context.Background(), srv.URL, testKey)
	require.NoError(t, err)
	assert.EqualValues(t, 4, cfg.Version)
}

func TestNewRejectsBadCABundle(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bundle, []byte("garbage"), 0o600))

	_, err := New(models.RestLink{CaBundle: bundle}, logger.NewTestLogger())
	assert.ErrorIs(t, err, errCABundleParse)
}
