package gateway

import (
	"net/http"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

func upload(url string) error {
	resp, err := http.Post(url, "text/plain", strings.NewReader("x")) // want "defaultclientcheck http.Post has no timeout, use a configured http.Client"
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func fetch(url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	_ = resp.Header.Get("Content-Type")
	return resp.Body.Close()
}

func legacy() *http.Client {
	return http.DefaultClient // want "defaultclientcheck http.DefaultClient has no timeout, use a configured http.Client"
}
