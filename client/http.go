package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"Bondr/internal/ledger"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// APIError is a non-2xx answer from the node.
// Ledger rejections carry their stable code and class.
type APIError struct {
	Status  int          // Status is the HTTP status code
	Code    string       // Code is the ledger error code, empty for transport rejections
	Class   ledger.Class // Class is the ledger error class
	Message string       // Message is the node's error text
}

// Error returns the node's message with the status.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Is matches ledger sentinel errors by code, so errors.Is(err, ledger.ErrNotReleased) works.
func (e *APIError) Is(target error) bool {
	le, ok := target.(*ledger.Error)
	return ok && e.Code != "" && le.Code == e.Code
}

// readError builds an APIError from a failed response.
func readError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
		Class string `json:"class"`
	}

	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err == nil {
		apiErr.Message = body.Error
		apiErr.Code = body.Code
		apiErr.Class = ledger.Class(body.Class)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}

// httpGet performs a GET request and decodes the JSON response.
func (c *Client) httpGet(path string, result any) error {
	url := c.baseURL + path

	resp, err := c.http.Get(url)
	if err != nil {
		return fmt.Errorf("GET %s:\n%w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// httpPost sends raw JSON bytes and decodes the JSON response.
func (c *Client) httpPost(path string, body []byte, result any) error {
	url := c.baseURL + path

	resp, err := c.http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("POST %s:\n%w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
