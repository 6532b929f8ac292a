package fetch

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"spiderbot/pkg/config"
)

// NewClient creates the shared HTTP client based on the provided configuration.
// Per-request deadlines are applied by the Fetcher via request contexts, so
// the client itself carries no overall timeout
func NewClient(cfg config.HTTPClientConfig, log *logrus.Logger) *http.Client {
	dialerTimeout := cfg.DialerTimeout
	if dialerTimeout <= 0 {
		dialerTimeout = 15 * time.Second
	}
	dialerKeepAlive := cfg.DialerKeepAlive
	if dialerKeepAlive <= 0 {
		dialerKeepAlive = 30 * time.Second
	}
	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 100
	}
	maxIdleConnsPerHost := cfg.MaxIdleConnsPerHost
	if maxIdleConnsPerHost <= 0 {
		maxIdleConnsPerHost = 4
	}
	idleConnTimeout := cfg.IdleConnTimeout
	if idleConnTimeout <= 0 {
		idleConnTimeout = 90 * time.Second
	}
	tlsHandshakeTimeout := cfg.TLSHandshakeTimeout
	if tlsHandshakeTimeout <= 0 {
		tlsHandshakeTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   dialerTimeout,
		KeepAlive: dialerKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		ForceAttemptHTTP2:      true,
		MaxIdleConns:           maxIdleConns,
		MaxIdleConnsPerHost:    maxIdleConnsPerHost,
		IdleConnTimeout:        idleConnTimeout,
		TLSHandshakeTimeout:    tlsHandshakeTimeout,
		MaxResponseHeaderBytes: 1 << 20,
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			log.Debugf("Redirecting: %s -> %s (hop %d)", via[len(via)-1].URL, req.URL, len(via))
			return nil
		},
	}
}
