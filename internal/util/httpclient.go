package util

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// transportConfig sizes the connection pool. goskip talks to a single
// timing API, so the pool is small and kept warm between episodes.
type transportConfig struct {
	maxIdleConns        int
	maxIdleConnsPerHost int
	idleConnTimeout     time.Duration
	tlsHandshakeTimeout time.Duration
	keepAlive           time.Duration
	dialTimeout         time.Duration
}

func apiTransportConfig() transportConfig {
	return transportConfig{
		maxIdleConns:        8,
		maxIdleConnsPerHost: 4,
		idleConnTimeout:     90 * time.Second,
		tlsHandshakeTimeout: 5 * time.Second,
		keepAlive:           30 * time.Second,
		dialTimeout:         5 * time.Second,
	}
}

func createTransport(cfg transportConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.dialTimeout,
			KeepAlive: cfg.keepAlive,
		}).DialContext,
		MaxIdleConns:        cfg.maxIdleConns,
		MaxIdleConnsPerHost: cfg.maxIdleConnsPerHost,
		IdleConnTimeout:     cfg.idleConnTimeout,
		TLSHandshakeTimeout: cfg.tlsHandshakeTimeout,
		ForceAttemptHTTP2:   true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// NewHTTPClient returns a client with the pooled transport and an overall
// request timeout. A zero timeout means none, leaving each request bounded
// by its context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: createTransport(apiTransportConfig()),
		Timeout:   timeout,
	}
}
