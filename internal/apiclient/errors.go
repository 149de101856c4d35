package apiclient

import (
	"encoding/json"
	"fmt"

	"github.com/spec-kit/telepredict/pkg/util"
)

// ServerErrorKind tags the shape of a failure body.
type ServerErrorKind int

const (
	Unrecognized ServerErrorKind = iota
	Detail
	FieldErrors
)

// messageKeys carry a single human-readable message, in order of preference.
var messageKeys = []string{"detail", "message", "error"}

// metadataKeys accompany a detail message and are not field errors.
var metadataKeys = []string{"code", "messages", "status"}

// ServerError is a failure body normalized once at the network boundary.
type ServerError struct {
	Kind   ServerErrorKind
	Detail string
	Fields map[string][]string
}

// ParseServerError classifies a non-2xx body. It never fails; anything it cannot
// read is Unrecognized.
func ParseServerError(body []byte) ServerError {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		var s string
		if json.Unmarshal(body, &s) == nil && s != "" {
			return ServerError{Kind: Detail, Detail: s}
		}
		return ServerError{Kind: Unrecognized}
	}

	var se ServerError
	for _, key := range messageKeys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		if msgs := messages(raw); len(msgs) > 0 && se.Detail == "" {
			se.Detail = msgs[0]
		}
		delete(obj, key)
	}
	if se.Detail != "" {
		for _, key := range metadataKeys {
			delete(obj, key)
		}
	}

	for key, raw := range obj {
		msgs := messages(raw)
		if len(msgs) == 0 {
			continue
		}
		if se.Fields == nil {
			se.Fields = make(map[string][]string)
		}
		se.Fields[key] = msgs
	}

	switch {
	case len(se.Fields) > 0:
		se.Kind = FieldErrors
	case se.Detail != "":
		se.Kind = Detail
	}
	return se
}

// messages reads a string, a list of strings, or a list of scalars.
func messages(raw json.RawMessage) []string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var list []any
	if json.Unmarshal(raw, &list) == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			switch t := v.(type) {
			case string:
				out = append(out, t)
			case nil:
			case map[string]any, []any:
				b, _ := json.Marshal(t)
				out = append(out, string(b))
			default:
				out = append(out, fmt.Sprint(t))
			}
		}
		return out
	}
	return nil
}

// Summary is the aggregated one-line message: detail first, then "field: msg" items.
func (se ServerError) Summary() string {
	switch se.Kind {
	case Detail:
		return se.Detail
	case FieldErrors:
		return util.ToDomainError(util.NewFieldValidationError(se.Detail, se.Fields)).Message
	}
	return ""
}

// Err converts the body into a DomainError. Field errors become validation errors;
// everything else is a network error, with fallback text when the body was unreadable.
func (se ServerError) Err(status int, fallback string) error {
	switch se.Kind {
	case FieldErrors:
		de := util.ToDomainError(util.NewFieldValidationError(se.Detail, se.Fields))
		de.HTTPStatus = status
		return de
	case Detail:
		return util.NewNetworkError(se.Detail, status, nil)
	}
	if fallback == "" {
		fallback = fmt.Sprintf("HTTP error! status: %d", status)
	}
	return util.NewNetworkError(fallback, status, nil)
}
