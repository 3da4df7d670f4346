package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	neturl "net/url"
	"strings"
)

// Request describes a single probe against the backend. Path is relative to
// the client's base URL and may carry a query string.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    any
}

func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body any) *Request {
	r.Body = body
	return r
}

// Header returns a request header using a case-insensitive lookup.
func (r *Request) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Clone returns a copy whose header map can be modified independently.
func (r *Request) Clone() *Request {
	c := *r
	c.Headers = make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		c.Headers[k] = v
	}
	return &c
}

// encodeBody returns the wire body and the content type implied by it.
// Strings and byte slices are sent verbatim; any other value is JSON encoded.
func (r *Request) encodeBody() (io.Reader, string, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, "", nil
	case string:
		if b == "" {
			return nil, "", nil
		}
		return strings.NewReader(b), "", nil
	case []byte:
		if len(b) == 0 {
			return nil, "", nil
		}
		return bytes.NewReader(b), "", nil
	case json.RawMessage:
		return bytes.NewReader(b), "application/json", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encoding request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// ResolveURL joins a request path onto a base URL. Absolute request URLs are
// returned unchanged.
func ResolveURL(baseURL, path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}

	base, err := neturl.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %v", err)
	}

	ref, err := neturl.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %v", path, err)
	}

	u := *base
	u.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
	u.RawPath = ""
	u.RawQuery = ref.RawQuery
	u.Fragment = ""
	return u.String(), nil
}
