// Package transport moves documents to and from the regulator's file gateway.
// The orchestrator owns retries; clients here fail fast with a typed error.
package transport

import (
	"context"
	"fmt"
	"time"

	id "refiler/pkg/domain"
)

// Response file suffixes. The gateway names response files after the uploaded
// document, so corresponding files are located by prefix match.
const (
	MessagesSuffix       = "_MESSAGES.xml"
	AcknowledgmentSuffix = "_ACKED.xml"
	uploadExtension      = ".xml"
)

// RemoteFile describes a file in the gateway's outbound directory.
type RemoteFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Client is the file-transfer boundary. Each call opens, uses and releases its
// own connection; polling runs on a cadence of hours to days, so holding a
// session open buys nothing.
type Client interface {
	// Upload writes the document bytes into the inbound directory and
	// returns the remote path written.
	Upload(ctx context.Context, data []byte, filename string) (string, error)
	// ListResponses lists outbound-directory files whose names start with
	// the given prefix.
	ListResponses(ctx context.Context, prefix string) ([]RemoteFile, error)
	// Download fetches one outbound file's contents.
	Download(ctx context.Context, file RemoteFile) ([]byte, error)
}

// Error wraps a transport-level failure with enough context for the
// orchestrator's retry policy and the audit trail.
type Error struct {
	Op       string // "upload", "list", "download", "connect"
	Host     string
	Filename string
	Err      error
}

func (e *Error) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("transport %s %s on %s: %v", e.Op, e.Filename, e.Host, e.Err)
	}
	return fmt.Sprintf("transport %s on %s: %v", e.Op, e.Host, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// UploadFilename builds the deterministic, collision-resistant name for an
// uploaded document: report ID plus UTC upload timestamp.
func UploadFilename(reportID id.ReportID, uploadedAt time.Time) string {
	return fmt.Sprintf("RERX_%s_%s%s", reportID, uploadedAt.UTC().Format("20060102150405"), uploadExtension)
}

// ResponsePrefix derives the outbound-directory prefix for a given uploaded
// filename.
func ResponsePrefix(uploadFilename string) string {
	if len(uploadFilename) > len(uploadExtension) {
		return uploadFilename[:len(uploadFilename)-len(uploadExtension)]
	}
	return uploadFilename
}

// IsMessages reports whether the remote file is a fast messages response.
func IsMessages(f RemoteFile) bool {
	return hasSuffix(f.Name, MessagesSuffix)
}

// IsAcknowledgment reports whether the remote file is a slow acknowledgment.
func IsAcknowledgment(f RemoteFile) bool {
	return hasSuffix(f.Name, AcknowledgmentSuffix)
}

func hasSuffix(name, suffix string) bool {
	return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
}
