package git

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// authFor picks credentials for url. HTTP(S) remotes get the configured token as basic
// auth; ssh remotes use the configured key file, or go-git's ssh agent default when none
// is set. Anything else (local paths, file://) runs unauthenticated.
func (c *Client) authFor(url string) (transport.AuthMethod, error) {
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return nil, &UnsupportedProtocolError{Op: "auth", URL: url, Err: err}
	}
	switch strings.ToLower(ep.Protocol) {
	case "http", "https":
		if c.cfg.Token == "" {
			return nil, nil
		}
		return &http.BasicAuth{Username: "token", Password: c.cfg.Token}, nil
	case "ssh":
		if c.cfg.SSHKeyPath == "" {
			return nil, nil
		}
		user := ep.User
		if user == "" {
			user = "git"
		}
		keys, err := ssh.NewPublicKeysFromFile(user, c.cfg.SSHKeyPath, "")
		if err != nil {
			return nil, &AuthError{Op: "auth", URL: url, Err: fmt.Errorf("load ssh key %s: %w", c.cfg.SSHKeyPath, err)}
		}
		return keys, nil
	default:
		return nil, nil
	}
}
