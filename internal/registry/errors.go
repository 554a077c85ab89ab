package registry

import "fmt"

// Kind classifies the closed set of ways a registry operation can fail.
type Kind int

const (
	KindCreateClient Kind = iota
	KindHTTP
	KindParse
	KindStatusCode
	KindMalformedResponse
	KindNotWhitelistedHost
	KindLoginFailure
	KindSerialize
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindCreateClient:
		return "create client"
	case KindHTTP:
		return "http"
	case KindParse:
		return "parse"
	case KindStatusCode:
		return "status code"
	case KindMalformedResponse:
		return "malformed response"
	case KindNotWhitelistedHost:
		return "not whitelisted host"
	case KindLoginFailure:
		return "login failure"
	case KindSerialize:
		return "serialize"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every exported Client method. The
// Kind is inspectable via errors.As so callers (the resolver, in
// particular) can tell a 404 apart from everything else without string
// matching.
type Error struct {
	Kind Kind
	URL  string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.URL != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.URL, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.URL, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func errCreateClient(err error) error {
	return &Error{Kind: KindCreateClient, Msg: "could not create HTTP client", Err: err}
}

func errHTTP(url string, err error) error {
	return &Error{Kind: KindHTTP, URL: url, Msg: "could not fetch URL", Err: err}
}

func errParse(url string, err error) error {
	return &Error{Kind: KindParse, URL: url, Msg: "could not parse URL", Err: err}
}

func errStatusCode(url string, code int) error {
	return &Error{Kind: KindStatusCode, URL: url, Msg: fmt.Sprintf("request returned status %d", code)}
}

func errMalformedResponse(url, msg string) error {
	return &Error{Kind: KindMalformedResponse, URL: url, Msg: fmt.Sprintf("malformed response: %s", msg)}
}

func errNotWhitelistedHost(url string) error {
	return &Error{Kind: KindNotWhitelistedHost, URL: url, Msg: "host is not whitelisted"}
}

func errLoginFailure(msg string) error {
	return &Error{Kind: KindLoginFailure, Msg: fmt.Sprintf("login failed: %s", msg)}
}

func errSerialize(url string, err error) error {
	return &Error{Kind: KindSerialize, URL: url, Msg: "could not serialize request body", Err: err}
}

func errNotFound(url string) error {
	return &Error{Kind: KindNotFound, URL: url, Msg: "not found"}
}
