// Package sftp implements the live transport over the regulator's SFTP
// gateway.
package sftp

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"path"
	"strings"

	gosftp "github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"refiler/internal/platform/config"
	"refiler/internal/transport"
)

// Client dials a fresh SFTP session per operation. Config (host, credentials,
// directory names) is injected at construction; nothing is read from ambient
// state at call time.
type Client struct {
	cfg config.SFTP
}

// New builds a live SFTP client from configuration.
func New(cfg config.SFTP) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("sftp: host is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("sftp: user is required")
	}
	if cfg.Password == "" && cfg.PrivateKeyPEM == "" {
		return nil, fmt.Errorf("sftp: password or private key is required")
	}
	return &Client{cfg: cfg}, nil
}

// Upload implements transport.Client.
func (c *Client) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	var remotePath string
	err := c.withSession(ctx, "upload", filename, func(sess *gosftp.Client) error {
		remotePath = path.Join(c.cfg.InboundDir, filename)
		f, err := sess.Create(remotePath)
		if err != nil {
			return fmt.Errorf("create %s: %w", remotePath, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", remotePath, err)
		}
		return f.Close()
	})
	if err != nil {
		return "", err
	}
	return remotePath, nil
}

// ListResponses implements transport.Client.
func (c *Client) ListResponses(ctx context.Context, prefix string) ([]transport.RemoteFile, error) {
	var files []transport.RemoteFile
	err := c.withSession(ctx, "list", prefix, func(sess *gosftp.Client) error {
		entries, err := sess.ReadDir(c.cfg.OutboundDir)
		if err != nil {
			return fmt.Errorf("read dir %s: %w", c.cfg.OutboundDir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
				continue
			}
			files = append(files, transport.RemoteFile{
				Name:    e.Name(),
				Size:    e.Size(),
				ModTime: e.ModTime(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Download implements transport.Client.
func (c *Client) Download(ctx context.Context, file transport.RemoteFile) ([]byte, error) {
	var data []byte
	err := c.withSession(ctx, "download", file.Name, func(sess *gosftp.Client) error {
		remotePath := path.Join(c.cfg.OutboundDir, file.Name)
		f, err := sess.Open(remotePath)
		if err != nil {
			return fmt.Errorf("open %s: %w", remotePath, err)
		}
		defer f.Close()
		data, err = io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", remotePath, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// withSession runs fn inside a freshly dialed connection, guaranteeing release
// on every exit path and wrapping failures in a transport.Error.
func (c *Client) withSession(ctx context.Context, op, filename string, fn func(*gosftp.Client) error) error {
	if err := ctx.Err(); err != nil {
		return &transport.Error{Op: op, Host: c.cfg.Host, Filename: filename, Err: err}
	}

	sshCfg, err := c.sshConfig()
	if err != nil {
		return &transport.Error{Op: "connect", Host: c.cfg.Host, Filename: filename, Err: err}
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	conn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return &transport.Error{Op: "connect", Host: c.cfg.Host, Filename: filename, Err: err}
	}
	defer conn.Close()

	sess, err := gosftp.NewClient(conn)
	if err != nil {
		return &transport.Error{Op: "connect", Host: c.cfg.Host, Filename: filename, Err: err}
	}
	defer sess.Close()

	// Cancelling the context tears down the connection so a hung transfer
	// cannot outlive its caller's deadline.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := fn(sess); err != nil {
		return &transport.Error{Op: op, Host: c.cfg.Host, Filename: filename, Err: err}
	}
	return nil
}

func (c *Client) sshConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if c.cfg.PrivateKeyPEM != "" {
		signer, err := ssh.ParsePrivateKey([]byte(c.cfg.PrivateKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.cfg.Password != "" {
		auth = append(auth, ssh.Password(c.cfg.Password))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // sandbox gateways rotate keys; production sets KnownHostKey
	if c.cfg.KnownHostKey != "" {
		raw, err := base64.StdEncoding.DecodeString(c.cfg.KnownHostKey)
		if err != nil {
			return nil, fmt.Errorf("decode host key: %w", err)
		}
		key, err := ssh.ParsePublicKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parse host key: %w", err)
		}
		hostKeyCallback = ssh.FixedHostKey(key)
	}

	return &ssh.ClientConfig{
		User:            c.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.cfg.DialTimeout,
	}, nil
}
