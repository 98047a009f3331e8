// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/wneessen/epaper-weather/internal/logger"
)

const (
	// DefaultTimeout is the default timeout value for the HTTPClient
	DefaultTimeout = time.Second * 10
)

var (
	// version is the version of the application (will be set at build time)
	version = "dev"
	// UserAgent is the User-Agent that the HTTP client sends with API requests. wttr.in picks
	// the plain-text renderer for curl-like agents, so we announce ourselves as such.
	UserAgent = fmt.Sprintf("curl/8.0 (%s; %s) epaper-weather/%s (+https://github.com/wneessen/epaper-weather/)",
		runtime.GOOS,
		runtime.GOARCH,
		version,
	)

	ErrNoPeerCertificates = errors.New("server presented no certificates")
)

// Client is a type wrapper for the Go stdlib http.Client and the Config
type Client struct {
	*http.Client
	logger  *logger.Logger
	timeout time.Duration
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout        time.Duration
	verifyHostname bool
	rootCAs        *x509.CertPool
}

// WithTimeout sets the timeout for a single request including reading the body.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHostnameVerification controls whether the server certificate has to match the
// requested host name. The certificate chain is verified in either case.
func WithHostnameVerification(verify bool) Option {
	return func(o *clientOptions) {
		o.verifyHostname = verify
	}
}

// WithRootCAs replaces the system trust store.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(o *clientOptions) {
		o.rootCAs = pool
	}
}

// New returns a new HTTP client
func New(log *logger.Logger, opts ...Option) *Client {
	options := &clientOptions{timeout: DefaultTimeout, verifyHostname: true}
	for _, opt := range opts {
		opt(options)
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    options.rootCAs,
	}
	if !options.verifyHostname {
		tlsConfig.InsecureSkipVerify = true //nolint:gosec // the chain is still checked in VerifyConnection
		tlsConfig.VerifyConnection = verifyChain(options.rootCAs)
	}

	// Transparent decompression drops the Content-Length of the response, which the
	// fetcher relies on to size its buffer.
	httpTransport := &http.Transport{
		TLSClientConfig:    tlsConfig,
		DisableCompression: true,
	}
	httpClient := &http.Client{
		Timeout:   options.timeout,
		Transport: httpTransport,
	}
	return &Client{Client: httpClient, logger: log, timeout: options.timeout}
}

// Open performs a HTTP GET request for the given URL and returns the response as a Stream
// once the headers have been received. The caller must close the Stream.
func (h *Client) Open(ctx context.Context, endpoint string, headers map[string]string) (*Stream, error) {
	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)

	// Prepare HTTP request
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed create new HTTP request with context: %w", err)
	}
	request.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		request.Header.Set(k, v)
	}

	// Execute HTTP request
	response, err := h.Do(request)
	if err != nil {
		cancel()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	if response == nil {
		cancel()
		return nil, errors.New("nil response received")
	}

	return &Stream{response: response, cancel: cancel, logger: h.logger}, nil
}

// Stream is an open HTTP response whose body has not been consumed yet.
type Stream struct {
	response *http.Response
	cancel   context.CancelFunc
	logger   *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// StatusCode returns the HTTP status code of the response.
func (s *Stream) StatusCode() int {
	return s.response.StatusCode
}

// ContentLength returns the declared length of the response body or -1 if unknown.
func (s *Stream) ContentLength() int64 {
	return s.response.ContentLength
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.response.Body.Read(p)
}

// Close releases the response body and the request context. Only the first call has
// an effect, later calls return the result of the first one.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		if s.response.Body != nil {
			if err := s.response.Body.Close(); err != nil {
				s.logger.Error("failed to close HTTP response body", logger.Err(err))
				s.closeErr = err
			}
		}
		s.cancel()
	})
	return s.closeErr
}

// verifyChain checks the presented certificate chain against the trust store without
// matching the server name.
func verifyChain(roots *x509.CertPool) func(tls.ConnectionState) error {
	return func(state tls.ConnectionState) error {
		if len(state.PeerCertificates) == 0 {
			return ErrNoPeerCertificates
		}
		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range state.PeerCertificates[1:] {
			opts.Intermediates.AddCert(cert)
		}
		if _, err := state.PeerCertificates[0].Verify(opts); err != nil {
			return fmt.Errorf("failed to verify server certificate chain: %w", err)
		}
		return nil
	}
}
