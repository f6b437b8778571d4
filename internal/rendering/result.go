// Package rendering mediates between collections and the external render
// service: job submission, status polling, artifact download and a
// content-addressed cache of locally assembled books.
package rendering

import (
	"encoding/json"
	"log/slog"
	"strconv"
)

// APIResult wraps a render service response. Transport failures and bogus
// payloads both leave Response empty, so callers only ever check IsError.
type APIResult struct {
	Response map[string]interface{}
}

// ParseResult decodes a service response body. Malformed payloads are logged
// and treated as no result.
func ParseResult(data []byte, log *slog.Logger) *APIResult {
	r := &APIResult{}
	if len(data) == 0 {
		return r
	}
	if err := json.Unmarshal(data, &r.Response); err != nil {
		if log != nil {
			log.Warn("render service returned bogus data", "error", err)
		}
		r.Response = nil
	}
	return r
}

// Get walks the given key path and returns the value as a string. Missing
// keys and non-leaf mismatches return "".
func (r *APIResult) Get(keys ...string) string {
	value := r.lookup(keys...)
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return ""
	default:
		return ""
	}
}

// GetFloat is Get for numeric values, returning 0 when absent.
func (r *APIResult) GetFloat(keys ...string) float64 {
	switch v := r.lookup(keys...).(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func (r *APIResult) lookup(keys ...string) interface{} {
	var value interface{} = r.Response
	for _, key := range keys {
		m, ok := value.(map[string]interface{})
		if !ok {
			return nil
		}
		value = m[key]
	}
	return value
}

// IsError reports whether the request failed: no response at all, or a
// response carrying an error field. Callers treat both the same way.
func (r *APIResult) IsError() bool {
	if len(r.Response) == 0 {
		return true
	}
	if err, ok := r.Response["error"]; ok && err != nil && err != "" && err != false {
		return true
	}
	return false
}

// ErrorText returns the service's error description, for logs only.
func (r *APIResult) ErrorText() string {
	if err, ok := r.Response["error"].(string); ok && err != "" {
		return err
	}
	return "(error unknown)"
}
