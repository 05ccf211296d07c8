package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// ErrMalformedMessage is returned when an inbound payload is not valid JSON
// or fails schema validation for its declared type.
var ErrMalformedMessage = errors.New("malformed client message")

var clientSchemas = compileClientSchemas()

func compileClientSchemas() map[string]*jsonschema.Schema {
	types := []string{
		MsgPlaceOrder,
		MsgReady,
		MsgSelectRegions,
		MsgLaunchCancelGameVote,
		MsgLaunchReplacePlayerVote,
		MsgVote,
	}

	compiler := jsonschema.NewCompiler()
	out := make(map[string]*jsonschema.Schema, len(types))
	for _, t := range types {
		name := fmt.Sprintf("schemas/%s.schema.json", t)
		raw, err := schemaFS.ReadFile(name)
		if err != nil {
			panic("missing embedded schema: " + name)
		}
		if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
			panic("schema " + name + ": " + err.Error())
		}
		out[t] = compiler.MustCompile(name)
	}
	return out
}

// DecodeClientMessage parses and schema-validates an inbound payload. Any
// failure yields ErrMalformedMessage; callers drop the message silently.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	obj, ok := generic.(map[string]any)
	if !ok {
		return ClientMessage{}, fmt.Errorf("%w: not an object", ErrMalformedMessage)
	}
	msgType, _ := obj["type"].(string)
	schema, ok := clientSchemas[msgType]
	if !ok {
		return ClientMessage{}, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, msgType)
	}

	if err := schema.Validate(generic); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return msg, nil
}
