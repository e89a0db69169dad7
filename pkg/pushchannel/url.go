package pushchannel

import (
	"fmt"
	"net/url"
)

// PushURL derives the push endpoint from the API base URL:
// http://host/... becomes ws://host/ws and https becomes wss.
func PushURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in %s", u.Scheme, baseURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in %s", baseURL)
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/ws"}).String(), nil
}
