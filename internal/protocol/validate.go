package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	ClientSchemaName = "ws_client_v1.schema.json"
	ServerSchemaName = "ws_server_v1.schema.json"
)

//go:embed schema/*.json
var schemaFS embed.FS

// Validator checks frames against one embedded message schema.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator(name string) (*Validator, error) {
	data, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, err
	}
	return &Validator{schema: schema}, nil
}

func MustClientValidator() *Validator {
	v, err := NewValidator(ClientSchemaName)
	if err != nil {
		panic(fmt.Sprintf("compile client schema: %v", err))
	}
	return v
}

func (v *Validator) Validate(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return v.schema.Validate(doc)
}

// DecodeClient validates raw and decodes it. Any failure means the frame is
// dropped.
func (v *Validator) DecodeClient(raw []byte) (ClientMessage, error) {
	if err := v.Validate(raw); err != nil {
		return ClientMessage{}, err
	}
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, err
	}
	return msg, nil
}
