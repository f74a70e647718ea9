package codexapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/gurpartap/tape/pkg/models"
)

// v1ToolNames is the fixed tool pack, in advertisement order.
var v1ToolNames = []string{"bash", "read", "edit", "write", "apply_patch"}

var v1ToolSchemas = map[string]string{
	"bash": `{
		"type": "object",
		"properties": {
			"command": { "type": "string" },
			"timeout_sec": { "type": "integer", "minimum": 1 },
			"cwd": { "type": "string" }
		},
		"required": ["command"],
		"additionalProperties": false
	}`,
	"read": `{
		"type": "object",
		"properties": {
			"path": { "type": "string" }
		},
		"required": ["path"],
		"additionalProperties": false
	}`,
	"edit": `{
		"type": "object",
		"properties": {
			"path": { "type": "string" },
			"old_text": { "type": "string" },
			"new_text": { "type": "string" }
		},
		"required": ["path", "old_text", "new_text"],
		"additionalProperties": false
	}`,
	"write": `{
		"type": "object",
		"properties": {
			"path": { "type": "string" },
			"content": { "type": "string" }
		},
		"required": ["path", "content"],
		"additionalProperties": false
	}`,
	"apply_patch": `{
		"type": "object",
		"properties": {
			"input": { "type": "string" }
		},
		"required": ["input"],
		"additionalProperties": false
	}`,
}

var v1ToolDescriptions = map[string]string{
	"bash":        "Execute a shell command in the current workspace",
	"read":        "Read UTF-8 text from a workspace-relative file",
	"edit":        "Replace exact text within a workspace file",
	"write":       "Write UTF-8 text content to a workspace file",
	"apply_patch": "Apply an apply_patch-formatted patch to workspace files",
}

// compiledToolSchemas validates inbound tool arguments against the pack.
var compiledToolSchemas = compileToolSchemas()

func compileToolSchemas() map[string]*jsonschema.Schema {
	compiled := make(map[string]*jsonschema.Schema, len(v1ToolNames))
	for _, name := range v1ToolNames {
		compiler := jsonschema.NewCompiler()
		resource := fmt.Sprintf("tape://tools/%s.json", name)
		if err := compiler.AddResource(resource, strings.NewReader(v1ToolSchemas[name])); err != nil {
			continue
		}
		schema, err := compiler.Compile(resource)
		if err != nil {
			continue
		}
		compiled[name] = schema
	}
	return compiled
}

// V1ToolDefinitions returns the advertised tool pack.
func V1ToolDefinitions() []models.ToolDefinition {
	definitions := make([]models.ToolDefinition, 0, len(v1ToolNames))
	for _, name := range v1ToolNames {
		definitions = append(definitions, models.ToolDefinition{
			Name:        name,
			Description: v1ToolDescriptions[name],
			InputSchema: json.RawMessage(compactJSON(v1ToolSchemas[name])),
		})
	}
	return definitions
}

func compactJSON(raw string) []byte {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return []byte(raw)
	}
	encoded, err := json.Marshal(decoded)
	if err != nil {
		return []byte(raw)
	}
	return encoded
}

// codexToolPayloads encodes the pack as function tools for the wire.
func codexToolPayloads() []json.RawMessage {
	payloads := make([]json.RawMessage, 0, len(v1ToolNames))
	for _, definition := range V1ToolDefinitions() {
		tool := map[string]any{
			"type":       "function",
			"name":       definition.Name,
			"parameters": json.RawMessage(definition.InputSchema),
		}
		if definition.Description != "" {
			tool["description"] = definition.Description
		}
		encoded, err := json.Marshal(tool)
		if err != nil {
			continue
		}
		payloads = append(payloads, encoded)
	}
	return payloads
}

func isV1ToolName(name string) bool {
	for _, candidate := range v1ToolNames {
		if candidate == name {
			return true
		}
	}
	return false
}

// ValidateToolArguments checks decoded arguments against the tool's input
// schema. The provider itself does not reject on schema violations; the
// host wraps its executor with this check so invalid arguments come back
// as error tool results instead of tool panics.
func ValidateToolArguments(toolName string, arguments json.RawMessage) error {
	schema, ok := compiledToolSchemas[toolName]
	if !ok {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(arguments, &decoded); err != nil {
		return err
	}
	return schema.Validate(decoded)
}
