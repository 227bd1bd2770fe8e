package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	apperrors "horaire/internal/errors"
	appLog "horaire/internal/log"
)

const DefaultTimeout = 30 * time.Second

// Credentials describes where a generated document is sent.
//
//	[upload]
//	url = ftp://ftp.example.org/public/horaire
//	username = player
//	password = secret
//	remote_name = horaire.xml
//	timeout_seconds = 30
//
// An [ftp] section with host, port, username, password and directory is
// accepted as well.
type Credentials struct {
	URL        *url.URL
	Username   string
	Password   string
	RemoteName string
	Timeout    time.Duration
}

// FromCredentials reads the credentials INI file at path.
func FromCredentials(path string) (*Credentials, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, apperrors.NewInvalidConfig(fmt.Sprintf("cannot read upload credentials %s: %v", path, err))
	}

	creds, err := parse(f)
	if err != nil {
		return nil, apperrors.NewInvalidConfig(fmt.Sprintf("%s: %v", path, err))
	}
	return creds, nil
}

func parse(f *ini.File) (*Credentials, error) {
	var raw string
	var sec *ini.Section

	switch {
	case f.HasSection("upload"):
		sec = f.Section("upload")
		raw = strings.TrimSpace(sec.Key("url").String())
	case f.HasSection("ftp"):
		sec = f.Section("ftp")
		host := strings.TrimSpace(sec.Key("host").String())
		if host == "" {
			return nil, errors.New("[ftp] host is required")
		}
		if port := strings.TrimSpace(sec.Key("port").String()); port != "" {
			host = net.JoinHostPort(host, port)
		}
		raw = (&url.URL{Scheme: "ftp", Host: host, Path: "/" + strings.Trim(sec.Key("directory").String(), "/ ")}).String()
	default:
		return nil, errors.New("missing [upload] section")
	}

	if raw == "" {
		return nil, errors.New("upload url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid upload url: %w", err)
	}
	switch u.Scheme {
	case "ftp", "http", "https":
	default:
		return nil, fmt.Errorf("unsupported upload scheme %q (want ftp, http or https)", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("upload url has no host")
	}

	creds := &Credentials{
		URL:        u,
		Username:   sec.Key("username").String(),
		Password:   sec.Key("password").String(),
		RemoteName: strings.TrimSpace(sec.Key("remote_name").String()),
		Timeout:    time.Duration(sec.Key("timeout_seconds").MustInt(int(DefaultTimeout/time.Second))) * time.Second,
	}
	if creds.Timeout <= 0 {
		creds.Timeout = DefaultTimeout
	}
	if strings.ContainsAny(creds.RemoteName, `/\`) {
		return nil, fmt.Errorf("remote_name %q must be a plain file name", creds.RemoteName)
	}
	return creds, nil
}

// Target returns the destination without credentials, for logs.
func (c *Credentials) Target() string {
	u := *c.URL
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// Uploader sends a finished document somewhere.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) error
}

// New picks the transport from the URL scheme.
func New(creds *Credentials) Uploader {
	if creds.URL.Scheme == "ftp" {
		return &ftpUploader{creds: creds}
	}
	return &webdavUploader{creds: creds}
}

// File uploads data, the content of the file at localPath, using creds.
// The remote name defaults to the local base name.
func File(ctx context.Context, creds *Credentials, localPath string, data []byte) error {
	name := creds.RemoteName
	if name == "" {
		name = filepath.Base(localPath)
	}

	ctx, cancel := context.WithTimeout(ctx, creds.Timeout)
	defer cancel()

	start := time.Now()
	if err := New(creds).Upload(ctx, name, data); err != nil {
		return apperrors.NewUploadFailed(creds.Target(), err)
	}
	appLog.Info("upload done", "target", creds.Target(), "name", name, "bytes", len(data), "took", time.Since(start).Round(time.Millisecond))
	return nil
}

func remotePath(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

func reader(data []byte) *bytes.Reader {
	return bytes.NewReader(data)
}
