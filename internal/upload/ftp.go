package upload

import (
	"context"
	"net"
	"strings"

	"github.com/jlaffaye/ftp"
)

type ftpUploader struct {
	creds *Credentials
}

func (u *ftpUploader) Upload(ctx context.Context, name string, data []byte) error {
	port := u.creds.URL.Port()
	if port == "" {
		port = "21"
	}
	addr := net.JoinHostPort(u.creds.URL.Hostname(), port)

	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(u.creds.Timeout),
	)
	if err != nil {
		return err
	}
	defer conn.Quit()

	user := u.creds.Username
	if user == "" {
		user = "anonymous"
	}
	if err := conn.Login(user, u.creds.Password); err != nil {
		return err
	}

	dir := strings.Trim(u.creds.URL.Path, "/")
	return conn.Stor(remotePath(dir, name), reader(data))
}
