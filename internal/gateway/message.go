package gateway

import (
	"encoding/json"
	"strings"
)

// FallbackMessage is shown when neither the body nor the transport explain a failure.
const FallbackMessage = "An unexpected error occurred"

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// validationItem is one entry of a 422 detail list.
type validationItem struct {
	Msg string `json:"msg"`
}

// ErrorMessage picks the user-facing text for a failed response: the detail
// field, then the message field, then the read error, then FallbackMessage.
func ErrorMessage(body []byte, readErr error) string {
	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		if d := detailText(eb.Detail); d != "" {
			return d
		}
		if m := strings.TrimSpace(eb.Message); m != "" {
			return m
		}
	}
	if readErr != nil {
		return readErr.Error()
	}
	return FallbackMessage
}

func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var items []validationItem
	if json.Unmarshal(raw, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if m := strings.TrimSpace(it.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
