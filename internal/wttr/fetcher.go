// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package wttr fetches plain-text weather reports from wttr.in.
package wttr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/wneessen/epaper-weather/internal/http"
	"github.com/wneessen/epaper-weather/internal/logger"
)

const (
	DefaultHost = "wttr.in"
	// DefaultQuery selects today's forecast only, narrow layout, quiet (no header line),
	// no terminal sequences, no "Follow" line and ASCII-safe output.
	DefaultQuery = "1&n&q&T&F?A"
	// MaxBodySize is the largest declared content length that is accepted.
	MaxBodySize = 8192
)

var (
	ErrConnectFailed    = errors.New("failed to open connection")
	ErrTruncatedBody    = errors.New("no bytes read from response body")
	ErrAllocationFailed = errors.New("failed to allocate report buffer")
)

// Conn is an open response whose headers have been read.
type Conn interface {
	io.ReadCloser
	StatusCode() int
	ContentLength() int64
}

// Opener opens a GET request for endpoint.
type Opener interface {
	Open(ctx context.Context, endpoint string) (Conn, error)
}

// Allocator returns a zeroed buffer of size bytes.
type Allocator func(size int) ([]byte, error)

// Fetcher performs a single report fetch per call.
type Fetcher struct {
	opener         Opener
	logger         *logger.Logger
	alloc          Allocator
	host           string
	query          string
	maxBodySize    int64
	maxLocationLen int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithHost(host string) Option {
	return func(f *Fetcher) {
		if host != "" {
			f.host = host
		}
	}
}

func WithQuery(query string) Option {
	return func(f *Fetcher) {
		f.query = query
	}
}

func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size >= 0 {
			f.maxBodySize = size
		}
	}
}

func WithMaxLocationLen(length int) Option {
	return func(f *Fetcher) {
		if length > 0 {
			f.maxLocationLen = length
		}
	}
}

// WithAllocator replaces the buffer allocator, e.g. to enforce a memory budget.
func WithAllocator(alloc Allocator) Option {
	return func(f *Fetcher) {
		if alloc != nil {
			f.alloc = alloc
		}
	}
}

// New returns a Fetcher that opens its connections through opener.
func New(opener Opener, log *logger.Logger, opts ...Option) *Fetcher {
	fetcher := &Fetcher{
		opener:         opener,
		logger:         log,
		alloc:          allocate,
		host:           DefaultHost,
		query:          DefaultQuery,
		maxBodySize:    MaxBodySize,
		maxLocationLen: MaxLocationLen,
	}
	for _, opt := range opts {
		opt(fetcher)
	}
	return fetcher
}

// NewHTTPOpener returns an Opener backed by the HTTP client.
func NewHTTPOpener(client *http.Client) Opener {
	return &httpOpener{client: client}
}

// Fetch retrieves the weather report for location.
//
// A nil report with a nil error means the server announced a body that is unknown in
// size or larger than the configured maximum; nothing was read in that case. A body
// shorter than announced is kept as long as at least one byte arrived. Errors wrap
// ErrEmptyLocation, ErrLocationTooLong, ErrConnectFailed, ErrAllocationFailed or
// ErrTruncatedBody, the latter when no byte could be read. The connection is closed before Fetch returns on every path.
func (f *Fetcher) Fetch(ctx context.Context, location string) (*Report, error) {
	path, err := buildPath(location, f.maxLocationLen)
	if err != nil {
		f.logger.Error("unable to perform weather request", logger.Err(err))
		return nil, err
	}
	f.logger.Debug("requesting weather report", slog.String("path", path))

	conn, err := f.opener.Open(ctx, f.endpoint(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			f.logger.Error("failed to close weather connection", logger.Err(err))
		}
	}()

	length := conn.ContentLength()
	f.logger.Debug("weather response received", slog.Int("status", conn.StatusCode()),
		slog.Int64("content_length", length))
	if length < 0 || length > f.maxBodySize {
		f.logger.Warn("weather response length outside of accepted range, discarding",
			slog.Int64("content_length", length), slog.Int64("max_body_size", f.maxBodySize))
		return nil, nil
	}

	buf, err := f.alloc(int(length) + 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	if int64(len(buf)) < length+1 {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrAllocationFailed, len(buf), length+1)
	}

	read, err := io.ReadFull(conn, buf[:length])
	if read <= 0 {
		clear(buf)
		if err == nil {
			err = io.EOF
		}
		return nil, fmt.Errorf("%w: read 0 of %d bytes: %w", ErrTruncatedBody, length, err)
	}
	if err != nil {
		f.logger.Warn("weather response shorter than declared, keeping what was read",
			slog.Int("read_len", read), slog.Int64("content_length", length), logger.Err(err))
	}
	f.logger.Debug("weather report read", slog.Int("read_len", read))

	return newReport(buf[:read+1]), nil
}

func (f *Fetcher) endpoint(path string) string {
	u := url.URL{
		Scheme:   "https",
		Host:     f.host,
		Path:     path,
		RawQuery: f.query,
	}
	return u.String()
}

func allocate(size int) ([]byte, error) {
	return make([]byte, size), nil
}

type httpOpener struct {
	client *http.Client
}

func (o *httpOpener) Open(ctx context.Context, endpoint string) (Conn, error) {
	stream, err := o.client.Open(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
