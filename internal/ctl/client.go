package ctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 5 * time.Second}

// audioClient carries recordings and playback uploads. A stop may wait out
// the daemon's full stop timeout before it answers.
var audioClient = &http.Client{Timeout: 2 * time.Minute}

// getJSON sends a GET request and decodes the JSON response into dst.
func getJSON(baseURL, path string, dst any) error {
	url := strings.TrimRight(baseURL, "/") + path
	resp, err := httpClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp, path)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// postJSON sends a POST request with a JSON body and decodes the response.
func postJSON(baseURL, path string, body, dst any) error {
	url := strings.TrimRight(baseURL, "/") + path
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}
	resp, err := httpClient.Post(url, "application/json", reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, dst)
}

// postAudio uploads a WAVE body and returns the response. The caller closes
// the body.
func postAudio(baseURL, path string, body []byte) (*http.Response, error) {
	url := strings.TrimRight(baseURL, "/") + path
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	return audioClient.Post(url, "audio/wav", reqBody)
}

// decodeJSON decodes a JSON response body into dst. It checks the status code
// and returns an error with the body for non-2xx responses.
func decodeJSON(resp *http.Response, dst any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp, "")
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// statusError turns a non-2xx response into an error, preferring the
// daemon's {"error": ...} message when there is one.
func statusError(resp *http.Response, path string) error {
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("HTTP %s: %s", resp.Status, body.Error)
	}
	if msg := strings.TrimSpace(string(b)); msg != "" {
		return fmt.Errorf("HTTP %s: %s", resp.Status, msg)
	}
	if path != "" {
		return fmt.Errorf("HTTP %s from %s", resp.Status, path)
	}
	return fmt.Errorf("HTTP %s", resp.Status)
}

// printJSON prints v as indented JSON to stdout.
func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
