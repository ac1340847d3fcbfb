// Package deezer is a thin client for the public Deezer catalog API. It only
// reads display metadata; audio materialization goes through the downloader
// collaborator in core/fetch.
package deezer

import (
	"net/http"
	"time"
)

// DefaultBaseURL is the public catalog endpoint.
const DefaultBaseURL = "https://api.deezer.com"

// Client is a Deezer catalog API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client against the public API.
func NewClient() *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: time.Second * 15,
		},
	}
}

// SetBaseURL overrides the API base URL, mainly for tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// SetTimeout overrides the request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}
