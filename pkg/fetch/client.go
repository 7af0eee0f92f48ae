package fetch

import (
	"errors"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"docsmap/pkg/config"
)

// NewClient creates a new HTTP client based on the provided configuration.
func NewClient(cfg config.HTTPClientConfig, log *logrus.Entry) *http.Client {
	log.Info("Initializing HTTP client...")

	dialer := &net.Dialer{
		Timeout:   cfg.DialerTimeout,
		KeepAlive: cfg.DialerKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		ForceAttemptHTTP2:      true, // Default to true unless explicitly disabled
		MaxIdleConns:           cfg.MaxIdleConns,
		MaxIdleConnsPerHost:    cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:        cfg.IdleConnTimeout,
		TLSHandshakeTimeout:    cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout:  cfg.ExpectContinueTimeout,
		MaxResponseHeaderBytes: 1 << 20, // 1MB max header size
	}
	if cfg.ForceAttemptHTTP2 != nil {
		transport.ForceAttemptHTTP2 = *cfg.ForceAttemptHTTP2
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			log.Debugf("Redirecting: %s -> %s (hop %d)", via[len(via)-1].URL, req.URL, len(via))
			return nil
		},
	}
	log.Info("HTTP client initialized.")
	return client
}
