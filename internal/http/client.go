// Package http builds the HTTP clients used to talk to the filer.
package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/spacefiler/spacefiler/internal/config"
	"github.com/spacefiler/spacefiler/internal/logging"
)

// NewFilerHTTPClient returns the client for filer calls: proxy-aware, with
// the given cookie jar carrying the sign-in session.
//
// HTTP/2 is attempted on direct connections only; proxies are forced to
// HTTP/1.1. DISABLE_HTTP2=true forces HTTP/1.1 everywhere.
//
// The client has no overall timeout. Uploads can run for a long time, so
// callers bound individual calls with a context instead.
func NewFilerHTTPClient(cfg *config.Config, jar nethttp.CookieJar, logger *logging.Logger) (*nethttp.Client, error) {
	client, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	client.Jar = jar
	client.Timeout = 0

	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM wraps the transport; leave it on HTTP/1.1.
		return client, nil
	}

	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || proxyActive(cfg) {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return client, nil
}

// proxyActive reports whether requests may go through a proxy.
func proxyActive(cfg *config.Config) bool {
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return cfg.ProxyHost != ""
	}
}
