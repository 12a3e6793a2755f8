package strategies

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of the named strategy's parameters.
func Schema(name string) ([]byte, error) {
	s, err := New(name, nil)
	if err != nil {
		return nil, err
	}

	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(s)
	schema.Title = fmt.Sprintf("%s-params", name)
	schema.Description = fmt.Sprintf("Parameters of the %s strategy", name)
	return json.MarshalIndent(schema, "", "  ")
}
