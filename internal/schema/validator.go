// Package schema validates webhook envelopes before they are routed.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidEnvelope is returned when a webhook body does not match the
// envelope schema.
var ErrInvalidEnvelope = errors.New("invalid webhook envelope")

// webhookSchema accepts the WhatsApp Business Account and Messenger page
// envelopes. Message-level fields are checked by the router.
const webhookSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["object", "entry"],
  "properties": {
    "object": {"type": "string", "enum": ["whatsapp_business_account", "page"]},
    "entry": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "changes": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "field": {"type": "string"},
                "value": {"type": "object"}
              }
            }
          },
          "messaging": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "sender": {"type": "object", "properties": {"id": {"type": "string"}}},
                "message": {"type": "object"}
              }
            }
          }
        }
      }
    }
  }
}`

// Validator checks webhook bodies against the envelope schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// New compiles the envelope schema.
func New() (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(webhookSchema))
	if err != nil {
		return nil, fmt.Errorf("compile webhook schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// Validate returns nil when raw is a well-formed envelope.
func (v *Validator) Validate(raw []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidEnvelope, strings.Join(msgs, "; "))
}
