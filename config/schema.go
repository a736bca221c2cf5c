package config

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	jsvalidate "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/ffi-bridge/errors"
)

const schemaURL = "ffibridge-config.json"

// Schema returns the JSON schema of Config.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := reflector.Reflect(&Config{})

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "marshal schema")
	}
	return out, nil
}

var (
	compiled     *jsvalidate.Schema
	compileErr   error
	compiledOnce sync.Once
)

func compiledSchema() (*jsvalidate.Schema, error) {
	compiledOnce.Do(func() {
		var raw []byte
		raw, compileErr = Schema()
		if compileErr != nil {
			return
		}
		c := jsvalidate.NewCompiler()
		if compileErr = c.AddResource(schemaURL, bytes.NewReader(raw)); compileErr != nil {
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// CheckDocument validates a YAML (or JSON) configuration document against
// the schema. Unknown keys and out-of-range values are rejected.
func CheckDocument(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse document")
	}
	if doc == nil {
		return nil
	}

	// Round trip through JSON so the validator sees JSON types only.
	b, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "convert document")
	}
	var obj interface{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "convert document")
	}

	sch, err := compiledSchema()
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "compile schema")
	}
	if err := sch.Validate(obj); err != nil {
		return errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "config document does not match schema")
	}
	return nil
}
