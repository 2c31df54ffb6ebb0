// Package validator sanitizes and validates flat request payloads against a
// per-call set of required and optional keys. Only the first failure is
// reported; unknown keys are dropped.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"userhub/api/internal/apperr"
	"userhub/api/internal/ids"
)

const (
	LocationParsing     = "MODEL:VALIDATOR:ERROR_PARSING_JSON"
	LocationFinalSchema = "MODEL:VALIDATOR:FINAL_SCHEMA"
)

type Requirement string

const (
	Required Requirement = "required"
	Optional Requirement = "optional"
)

// Keys selects which catalogue fields a payload may carry and whether each must be present.
type Keys map[string]Requirement

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindTime
)

type check struct {
	typ  string
	rule validation.Rule
}

type field struct {
	name     string
	kind     valueKind
	sanitize func(string) string
	checks   []check
}

// catalogue order is the order in which fields are checked.
var catalogue = []field{
	{
		name:     "username",
		kind:     kindString,
		sanitize: strings.TrimSpace,
		checks: []check{
			{"string.alphanum", is.Alphanumeric.Error(`"username" must contain only alphanumeric characters.`)},
			{"string.min", validation.RuneLength(3, 0).Error(`"username" must be at least 3 characters long.`)},
			{"string.max", validation.RuneLength(0, 30).Error(`"username" must be at most 30 characters long.`)},
		},
	},
	{
		name:     "email",
		kind:     kindString,
		sanitize: func(s string) string { return strings.ToLower(strings.TrimSpace(s)) },
		checks: []check{
			{"string.email", is.Email.Error(`"email" must be a valid email.`)},
			{"string.min", validation.RuneLength(7, 0).Error(`"email" must be at least 7 characters long.`)},
			{"string.max", validation.RuneLength(0, 254).Error(`"email" must be at most 254 characters long.`)},
		},
	},
	{
		name:     "password",
		kind:     kindString,
		sanitize: strings.TrimSpace,
		checks: []check{
			{"string.min", validation.RuneLength(8, 0).Error(`"password" must be at least 8 characters long.`)},
			{"string.max", validation.RuneLength(0, 72).Error(`"password" must be at most 72 characters long.`)},
			// bcrypt rejects input longer than 72 bytes.
			{"string.maxBytes", validation.By(maxBytes(72, `"password" must be at most 72 bytes long.`))},
		},
	},
	{
		name:     "token_id",
		kind:     kindString,
		sanitize: strings.TrimSpace,
		checks: []check{
			{"string.guid", is.UUIDv4.Error(`"token_id" must be a valid UUID.`)},
		},
	},
	{
		name:     "id",
		kind:     kindString,
		sanitize: strings.TrimSpace,
		checks: []check{
			{"string.id", validation.By(recordID)},
		},
	},
	{name: "used", kind: kindBool},
	{name: "expires_at", kind: kindTime},
	{name: "created_at", kind: kindTime},
	{name: "updated_at", kind: kindTime},
}

func maxBytes(limit int, message string) validation.RuleFunc {
	err := errors.New(message)
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > limit {
			return err
		}
		return nil
	}
}

var errInvalidRecordID = errors.New(`"id" must be a valid identifier.`)

func recordID(value interface{}) error {
	s, _ := value.(string)
	if !ids.IsRecordID(s) {
		return errInvalidRecordID
	}
	return nil
}

// ValidateJSON decodes a raw request body and validates it.
func ValidateJSON(body []byte, keys Keys) (map[string]any, error) {
	var decoded any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, parsingError(err)
		}
	}
	return Validate(decoded, keys)
}

// Validate returns a sanitized copy of input holding only the fields named in keys.
// input may be a map or a struct with json tags; it is normalized through a JSON
// round trip so omitted and never-sent values look the same.
func Validate(input any, keys Keys) (map[string]any, error) {
	object, err := normalize(input)
	if err != nil {
		return nil, err
	}

	fields, ok := object.(map[string]any)
	if !ok {
		return nil, schemaError("Body must be an object.", "object", "object.base")
	}
	if len(fields) == 0 {
		return nil, schemaError("Object must have at least one key.", "object", "object.min")
	}

	clean := make(map[string]any, len(keys))
	for _, f := range catalogue {
		requirement, wanted := keys[f.name]
		if !wanted {
			continue
		}

		raw, present := fields[f.name]
		if !present {
			if requirement == Required {
				return nil, schemaError(fmt.Sprintf("%q is a required field.", f.name), f.name, "any.required")
			}
			continue
		}
		if raw == nil {
			return nil, schemaError(fmt.Sprintf("%q has the invalid value \"null\".", f.name), f.name, "any.invalid")
		}

		value, err := f.validate(raw)
		if err != nil {
			return nil, err
		}
		clean[f.name] = value
	}

	return clean, nil
}

func normalize(input any) (any, error) {
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, parsingError(err)
	}
	var object any
	if err := json.Unmarshal(encoded, &object); err != nil {
		return nil, parsingError(err)
	}
	return object, nil
}

func (f field) validate(raw any) (any, error) {
	switch f.kind {
	case kindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, schemaError(fmt.Sprintf("%q must be a boolean.", f.name), f.name, "boolean.base")
		}
		return b, nil
	case kindTime:
		s, ok := raw.(string)
		if !ok {
			return nil, schemaError(fmt.Sprintf("%q must be a date.", f.name), f.name, "date.base")
		}
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
		if err != nil {
			return nil, schemaError(fmt.Sprintf("%q must be a date.", f.name), f.name, "date.base")
		}
		return ts, nil
	}

	s, ok := raw.(string)
	if !ok {
		return nil, schemaError(fmt.Sprintf("%q must be a string.", f.name), f.name, "string.base")
	}
	if f.sanitize != nil {
		s = f.sanitize(s)
	}
	if s == "" {
		return nil, schemaError(fmt.Sprintf("%q must not be blank.", f.name), f.name, "string.empty")
	}
	for _, c := range f.checks {
		if err := validation.Validate(s, c.rule); err != nil {
			return nil, schemaError(err.Error(), f.name, c.typ)
		}
	}
	return s, nil
}

func schemaError(message, key, typ string) *apperr.Error {
	return apperr.Validation(message, LocationFinalSchema, apperr.WithKey(key), apperr.WithType(typ))
}

func parsingError(cause error) *apperr.Error {
	return apperr.Validation("The submitted value could not be parsed.", LocationParsing,
		apperr.WithAction("Check that the submitted value is valid JSON."),
		apperr.WithKey("object"),
		apperr.WithCause(cause),
	)
}
