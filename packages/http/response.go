package http

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Response is the normalized result of one probe. BodyJSON is set only when
// the body parsed as JSON.
type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	BodyText   string
	BodyJSON   any
	Duration   time.Duration
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := strings.ToLower(r.ContentType())
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}

// HasJSON reports whether the body was parsed as JSON.
func (r *Response) HasJSON() bool {
	return r.BodyJSON != nil
}

// JSON returns the body as a gjson result for path lookups. The result does
// not exist when the body is not valid JSON.
func (r *Response) JSON() gjson.Result {
	if !gjson.Valid(r.BodyText) {
		return gjson.Result{}
	}
	return gjson.Parse(r.BodyText)
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
