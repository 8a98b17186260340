package payway

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// requestSchema validates a machine's request node before a cycle starts.
// Clients write these nodes directly, so nothing upstream has checked them.
const requestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["time", "amount", "location"],
	"properties": {
		"time":     {"type": "string", "minLength": 1},
		"amount":   {"type": "number", "exclusiveMinimum": 0},
		"location": {"type": "string", "minLength": 1},
		"items":    {"type": "array"}
	}
}`

var requestSchemaLoader = gojsonschema.NewStringLoader(requestSchema)

// ValidateRequest checks a machine request against the request schema and
// returns a single error listing every violation.
func ValidateRequest(request any) error {
	result, err := gojsonschema.Validate(requestSchemaLoader, gojsonschema.NewGoLoader(request))
	if err != nil {
		return fmt.Errorf("validate request: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("invalid request: %s", strings.Join(problems, "; "))
}
