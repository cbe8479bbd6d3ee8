// Package mock provides an in-memory transport for development and tests.
// It mimics the gateway's inbound/outbound directory layout and can be
// scripted to fail uploads or to auto-respond like the sandbox gateway.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"refiler/internal/transport"
)

// Client is an in-memory transport.Client.
type Client struct {
	mu       sync.Mutex
	inbound  map[string][]byte
	outbound map[string][]byte

	failUploads   int
	failDownloads int
	autoRespond   bool
	receipt       string
	clock         func() time.Time
}

// Option configures a mock client.
type Option func(*Client)

// WithAutoRespond makes every successful upload immediately produce an
// accepted messages file and an acknowledgment carrying the given receipt.
// This lets mock-mode deployments exercise the whole pipeline.
func WithAutoRespond(receipt string) Option {
	return func(c *Client) {
		c.autoRespond = true
		c.receipt = receipt
	}
}

// WithClock injects a clock for deterministic ModTime values in tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) { c.clock = clock }
}

// New builds an empty mock transport.
func New(opts ...Option) *Client {
	c := &Client{
		inbound:  map[string][]byte{},
		outbound: map[string][]byte{},
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FailUploads makes the next n Upload calls fail with a transport error.
func (c *Client) FailUploads(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failUploads = n
}

// FailDownloads makes the next n Download calls fail with a transport error.
func (c *Client) FailDownloads(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failDownloads = n
}

// PlaceResponse drops a response file into the outbound directory, as the
// regulator would.
func (c *Client) PlaceResponse(name string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outbound[name] = data
}

// Uploaded returns the bytes uploaded under the given filename.
func (c *Client) Uploaded(filename string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.inbound[filename]
	return data, ok
}

// Upload implements transport.Client.
func (c *Client) Upload(_ context.Context, data []byte, filename string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failUploads > 0 {
		c.failUploads--
		return "", &transport.Error{Op: "upload", Host: "mock", Filename: filename, Err: errors.New("injected upload failure")}
	}

	c.inbound[filename] = append([]byte{}, data...)

	if c.autoRespond {
		prefix := transport.ResponsePrefix(filename)
		c.outbound[prefix+transport.MessagesSuffix] = []byte(
			`<EFilingSubmissionXML StatusCode="A"></EFilingSubmissionXML>`)
		c.outbound[prefix+transport.AcknowledgmentSuffix] = []byte(fmt.Sprintf(
			`<EFilingBatchAcknowledgementXML><EFilingActivityXML SeqNum="1"><BSAIdentifier>%s</BSAIdentifier></EFilingActivityXML></EFilingBatchAcknowledgementXML>`,
			c.receipt))
	}
	return "inbound/" + filename, nil
}

// ListResponses implements transport.Client.
func (c *Client) ListResponses(_ context.Context, prefix string) ([]transport.RemoteFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var files []transport.RemoteFile
	for name, data := range c.outbound {
		if strings.HasPrefix(name, prefix) {
			files = append(files, transport.RemoteFile{
				Name:    name,
				Size:    int64(len(data)),
				ModTime: c.clock(),
			})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Download implements transport.Client.
func (c *Client) Download(_ context.Context, file transport.RemoteFile) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failDownloads > 0 {
		c.failDownloads--
		return nil, &transport.Error{Op: "download", Host: "mock", Filename: file.Name, Err: errors.New("injected download failure")}
	}

	data, ok := c.outbound[file.Name]
	if !ok {
		return nil, &transport.Error{Op: "download", Host: "mock", Filename: file.Name, Err: errors.New("no such file")}
	}
	return append([]byte{}, data...), nil
}
