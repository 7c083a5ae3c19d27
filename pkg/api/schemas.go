package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/browserd/pkg/browser"
	"github.com/xeipuuv/gojsonschema"
)

// Request body schemas. Fields whose type errors have a dedicated message
// (url, script, cookies) are left to the automation layer.
const (
	createSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "userAgent": { "type": "string" },
    "viewport": {
      "type": "object",
      "required": ["width", "height"],
      "properties": {
        "width": { "type": "integer", "minimum": 1 },
        "height": { "type": "integer", "minimum": 1 }
      }
    }
  }
}`

	objectSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object"
}`

	gotoSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "options": {
      "type": "object",
      "properties": {
        "waitUntil": { "type": "string" },
        "timeout": { "type": "integer", "minimum": 0 }
      }
    }
  }
}`

	actionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "selector": { "type": "string" },
    "text": { "type": "string" },
    "options": {
      "type": "object",
      "properties": {
        "wait": { "type": "boolean" },
        "timeout": { "type": "integer", "minimum": 0 }
      }
    }
  }
}`

	headersSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": { "type": "string" }
}`

	cookiesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "items": {
    "type": "object",
    "required": ["name", "value"],
    "properties": {
      "name": { "type": "string", "minLength": 1 },
      "value": { "type": "string" },
      "url": { "type": "string" },
      "domain": { "type": "string" },
      "path": { "type": "string" },
      "expires": { "type": "number" },
      "httpOnly": { "type": "boolean" },
      "secure": { "type": "boolean" },
      "sameSite": { "enum": ["Strict", "Lax", "None"] }
    }
  }
}`
)

// validator checks request bodies against a compiled schema
type validator struct {
	schema *gojsonschema.Schema
}

func mustValidator(src string) *validator {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return &validator{schema: schema}
}

var (
	objectValidator  = mustValidator(objectSchema)
	createValidator  = mustValidator(createSchema)
	gotoValidator    = mustValidator(gotoSchema)
	actionValidator  = mustValidator(actionSchema)
	headersValidator = mustValidator(headersSchema)
	cookiesValidator = mustValidator(cookiesSchema)
)

// Validate returns an INVALID_ARGUMENT error listing every schema violation
func (v *validator) Validate(body []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return browser.InvalidArgument("invalid JSON body: %v", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return browser.InvalidArgument("invalid request body: %s", strings.Join(msgs, "; "))
}

// decode validates body and unmarshals it into dst. An empty body is read
// as fallback.
func decode(v *validator, body []byte, fallback string, dst any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte(fallback)
	}
	if !json.Valid(body) {
		return browser.InvalidArgument("invalid JSON body")
	}
	if err := v.Validate(body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return browser.InvalidArgument("invalid request body: %v", err)
	}
	return nil
}
