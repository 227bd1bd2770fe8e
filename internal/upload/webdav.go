package upload

import (
	"context"
	"io"
	"net/http"

	"github.com/emersion/go-webdav"
)

type webdavUploader struct {
	creds  *Credentials
	client *http.Client
}

func (u *webdavUploader) Upload(ctx context.Context, name string, data []byte) error {
	hc := u.client
	if hc == nil {
		hc = &http.Client{Timeout: u.creds.Timeout}
	}
	var httpClient webdav.HTTPClient = hc
	if u.creds.Username != "" || u.creds.Password != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(hc, u.creds.Username, u.creds.Password)
	}

	endpoint := *u.creds.URL
	endpoint.User = nil
	if endpoint.Path == "" || endpoint.Path[len(endpoint.Path)-1] != '/' {
		endpoint.Path += "/"
	}

	client, err := webdav.NewClient(httpClient, endpoint.String())
	if err != nil {
		return err
	}

	w, err := client.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, reader(data)); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
