package session

import (
	"fmt"
	"net/url"
	"strings"
)

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultIdentityParam is the query parameter carrying the local identity.
const DefaultIdentityParam = "user"

// Endpoint describes where to connect and who is connecting.
type Endpoint struct {
	Scheme        string
	Host          string
	Path          string
	Identity      string
	IdentityParam string
}

// ParseEndpoint parses a ws:// or wss:// URL. Query parameters already
// present in raw are kept.
func ParseEndpoint(raw, identity string) (Endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: scheme must be ws or wss", raw)
	}
	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: missing host", raw)
	}
	path := u.Path
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return Endpoint{
		Scheme:        u.Scheme,
		Host:          u.Host,
		Path:          path,
		Identity:      identity,
		IdentityParam: DefaultIdentityParam,
	}, nil
}

// String renders the endpoint as a URL with the identity parameter.
func (e Endpoint) String() string {
	path, rawQuery, _ := strings.Cut(e.Path, "?")
	if path == "" {
		path = "/"
	}
	u := url.URL{Scheme: e.Scheme, Host: e.Host, Path: path, RawQuery: rawQuery}
	if e.Identity != "" {
		param := e.IdentityParam
		if param == "" {
			param = DefaultIdentityParam
		}
		q := u.Query()
		q.Set(param, e.Identity)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
