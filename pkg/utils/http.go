package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
)

const maxErrorBody = 512

// PostJson POSTs body and treats any non-2xx status as an error.
func PostJson(ctx context.Context, cli *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := cli.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if resp.Body != nil {
			resp.Body.Close()
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("http.status=%s body=%s", resp.Status, string(b))
	}
	_, _ = io.Copy(ioutil.Discard, resp.Body)
	return nil
}
