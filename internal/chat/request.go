package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validation messages returned to callers.
const (
	MsgQuestionRequired = "Message is required."
	MsgURLsNotArray     = "URLs must be an array."
	invalidURLsPrefix   = "Invalid URLs: "
)

// ErrMalformedBody is returned by ParseRequest when the body is not a JSON
// object of the expected shape.
var ErrMalformedBody = errors.New("malformed request body")

// Request is a validated-shape chat request. URLs keeps the caller's order and
// duplicates.
type Request struct {
	Question string
	URLs     []string
}

// ValidationError rejects a request before any work is done.
type ValidationError struct {
	Message string
	// InvalidURLs lists every URL that failed to parse, in request order.
	InvalidURLs []string
}

func (e *ValidationError) Error() string { return e.Message }

type wireRequest struct {
	Question *string         `json:"question"`
	Message  *string         `json:"message"`
	URLs     json.RawMessage `json:"urls"`
	URL      *string         `json:"url"`
}

// ParseRequest decodes a request body. "message" is accepted in place of
// "question", and a single "url" string in place of "urls" when "urls" is
// absent. A "urls" value that is not an array yields a *ValidationError.
func ParseRequest(body []byte) (Request, error) {
	var wire wireRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}

	var req Request
	switch {
	case wire.Question != nil && strings.TrimSpace(*wire.Question) != "":
		req.Question = *wire.Question
	case wire.Message != nil:
		req.Question = *wire.Message
	}

	raw := bytes.TrimSpace(wire.URLs)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		if wire.URL != nil {
			req.URLs = []string{*wire.URL}
		}
	default:
		urls, err := decodeURLs(raw)
		if err != nil {
			// Reported after the question check, matching Validate's order.
			if strings.TrimSpace(req.Question) == "" {
				return req, &ValidationError{Message: MsgQuestionRequired}
			}
			return req, err
		}
		req.URLs = urls
	}
	return req, nil
}

// decodeURLs reads a JSON array. Non-string elements are kept as their JSON
// text so that validation reports them as invalid.
func decodeURLs(raw json.RawMessage) ([]string, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &ValidationError{Message: MsgURLsNotArray}
	}
	urls := make([]string, 0, len(elems))
	for _, elem := range elems {
		var s string
		if err := json.Unmarshal(elem, &s); err != nil {
			s = string(elem)
		}
		urls = append(urls, s)
	}
	return urls, nil
}

// Validate checks the question and every URL. All invalid URLs are reported
// together.
func Validate(req Request) error {
	if strings.TrimSpace(req.Question) == "" {
		return &ValidationError{Message: MsgQuestionRequired}
	}
	var invalid []string
	for _, u := range req.URLs {
		if !IsAbsoluteURL(u) {
			invalid = append(invalid, u)
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{
			Message:     invalidURLsPrefix + strings.Join(invalid, ", "),
			InvalidURLs: invalid,
		}
	}
	return nil
}

// IsAbsoluteURL reports whether raw parses with both a scheme and a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
