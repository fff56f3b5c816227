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

// Package fetcher downloads device configurations over HTTPS using the
// process-wide TLS material.
package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rallytac/magellan/pkg/logger"
	"github.com/rallytac/magellan/pkg/models"
)

// requestTimeout bounds one configuration download. It must stay short
// relative to the URL checker interval so retries are not starved.
const requestTimeout = 10 * time.Second

var (
	errCABundleParse = errors.New("no certificates parsed from CA bundle")
	errHTTPStatus    = errors.New("unexpected HTTP status")
	errEmptyBody     = errors.New("empty response body")
)

// Client performs blocking HTTPS GETs against device config endpoints.
type Client struct {
	httpClient *http.Client
	logOps     bool
	log        logger.Logger
}

// New builds a Client from the REST link configuration. The client
// certificate/key, CA bundle, and verify flags are applied once here;
// the configuration is read-only afterwards.
func New(link models.RestLink, log logger.Logger) (*Client, error) {
	tlsCfg, err := tlsConfigFor(link)
	if err != nil {
		return nil, err
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				TLSClientConfig: tlsCfg,
			},
		},
		logOps: link.LogURLOperation,
		log:    log,
	}, nil
}

func tlsConfigFor(link models.RestLink) (*tls.Config, error) {
	//nolint:gosec // verifyPeer=false is an explicit host opt-out
	cfg := &tls.Config{
		InsecureSkipVerify: !link.VerifyPeer,
	}

	if link.CertFile != "" && link.KeyFile != "" {
		cert, err := loadKeyPair(link.CertFile, link.KeyFile, link.KeyPass)
		if err != nil {
			return nil, fmt.Errorf("failed to load client key pair: %w", err)
		}

		cfg.Certificates = []tls.Certificate{cert}
	}

	var roots *x509.CertPool

	if link.CaBundle != "" {
		pemData, err := os.ReadFile(link.CaBundle)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA bundle: %w", err)
		}

		roots = x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pemData) {
			return nil, errCABundleParse
		}

		cfg.RootCAs = roots
	}

	// Peer verification without host name verification: skip the built-in
	// check and verify the chain ourselves.
	if link.VerifyPeer && !link.VerifyHost {
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = chainVerifier(roots)
	}

	return cfg, nil
}

// chainVerifier validates the peer chain against roots (or the system pool
// when roots is nil) without checking the host name.
func chainVerifier(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		certs := make([]*x509.Certificate, 0, len(rawCerts))

		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("failed to parse peer certificate: %w", err)
			}

			certs = append(certs, cert)
		}

		if len(certs) == 0 {
			return errors.New("no peer certificates presented")
		}

		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}

		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}

		_, err := certs[0].Verify(opts)

		return err
	}
}

// loadKeyPair loads a client certificate and key, decrypting the key with
// keyPass when the PEM block is passphrase-protected.
func loadKeyPair(certFile, keyFile, keyPass string) (tls.Certificate, error) {
	if keyPass == "" {
		return tls.LoadX509KeyPair(certFile, keyFile)
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return tls.Certificate{}, errors.New("no PEM block in key file")
	}

	//nolint:staticcheck // legacy RFC 1423 keys are what hosts hand us
	if x509.IsEncryptedPEMBlock(block) {
		//nolint:staticcheck
		der, err := x509.DecryptPEMBlock(block, []byte(keyPass))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to decrypt key: %w", err)
		}

		keyPEM = pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der})
	}

	return tls.X509KeyPair(certPEM, keyPEM)
}

// Fetch downloads and parses the configuration at url. On success the
// returned configuration and every nested talkgroup are stamped with key so
// downstream consumers have provenance.
func (c *Client) Fetch(ctx context.Context, url, key string) (*models.DeviceConfiguration, error) {
	if c.logOps {
		c.log.Debug().Str("url", url).Str("key", key).Msg("downloading device configuration")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d from %s", errHTTPStatus, resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if len(body) == 0 {
		return nil, errEmptyBody
	}

	var cfg models.DeviceConfiguration
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.DiscovererKey = key

	for i := range cfg.Talkgroups {
		cfg.Talkgroups[i].DeviceKey = key
	}

	if c.logOps {
		c.log.Debug().Str("key", key).Uint64("version", cfg.Version).
			Int("talkgroups", len(cfg.Talkgroups)).Msg("downloaded device configuration")
	}

	return &cfg, nil
}
