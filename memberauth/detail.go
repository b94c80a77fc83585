package memberauth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// errorBody is the failure shape of the authentication service. detail is
// either a plain string or a list of structured validation entries.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type detailEntry struct {
	Loc    []any  `json:"loc"`
	Msg    string `json:"msg"`
	Detail string `json:"detail"`
}

// ParseDetail reads an error response body and returns the display message
// together with any structured field errors, in the order the server sent
// them. fallback is used when the body carries nothing usable.
func ParseDetail(r io.Reader, fallback string) (string, []FieldError) {
	var body errorBody
	if err := json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&body); err != nil || len(body.Detail) == 0 {
		return fallback, nil
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return fallback, nil
		}
		return s, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(body.Detail, &entries); err != nil {
		return fallback, nil
	}

	fields := make([]FieldError, 0, len(entries))
	msgs := make([]string, 0, len(entries))
	for _, raw := range entries {
		var e detailEntry
		_ = json.Unmarshal(raw, &e)

		msg := e.Msg
		if msg == "" {
			msg = e.Detail
		}
		if msg == "" {
			// Unrecognized entries are shown as their JSON text.
			msg = compactJSON(raw)
		}
		msgs = append(msgs, msg)
		fields = append(fields, FieldError{Field: fieldName(e.Loc), Message: msg})
	}
	if len(msgs) == 0 {
		return fallback, nil
	}

	return strings.Join(msgs, ", "), fields
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// fieldName picks the last location element, e.g. ["body","email"] -> "email".
func fieldName(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	switch v := loc[len(loc)-1].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%d", int(v))
	default:
		return ""
	}
}
