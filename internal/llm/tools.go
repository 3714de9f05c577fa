package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nhle/mail-agent/internal/agent"
)

// Tool names exposed to the model.
const (
	toolListMail   = "list_mail"
	toolReadMail   = "read_mail"
	toolSendMail   = "send_mail"
	toolDeleteMail = "delete_mail"
	toolRenderPage = "render_page"
)

type toolDef struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

func toolDefinitions() []toolDef {
	return []toolDef{
		{
			Name:        toolListMail,
			Description: "List the most recent messages in the inbox with their id, subject, sender and date.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"maxResults": {"type": "integer", "description": "Number of messages to list (default 15, at most 100)"}
				},
				"additionalProperties": false
			}`),
		},
		{
			Name:        toolReadMail,
			Description: "Read the full content of one message by id.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id": {"type": "string", "minLength": 1, "description": "Message id from list_mail"}
				},
				"required": ["id"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        toolSendMail,
			Description: "Send a plain-text email. Only call this when the user has provided the recipient, subject and body.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"to": {"type": "string", "description": "Recipient email address"},
					"subject": {"type": "string"},
					"body": {"type": "string"}
				},
				"required": ["to", "subject", "body"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        toolDeleteMail,
			Description: "Move a message to the trash by id.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id": {"type": "string", "minLength": 1, "description": "Message id from list_mail"}
				},
				"required": ["id"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        toolRenderPage,
			Description: "Finish the turn by returning the complete HTML page shown to the user.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"html": {"type": "string", "description": "A complete HTML document"}
				},
				"required": ["html"],
				"additionalProperties": false
			}`),
		},
	}
}

// toolDecoder validates tool input against the tool's schema and turns
// it into a decision.
type toolDecoder struct {
	schemas map[string]*gojsonschema.Schema
}

func newToolDecoder(defs []toolDef) (*toolDecoder, error) {
	d := &toolDecoder{schemas: make(map[string]*gojsonschema.Schema, len(defs))}
	for _, def := range defs {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(def.Schema))
		if err != nil {
			return nil, fmt.Errorf("compiling schema for %s: %w", def.Name, err)
		}
		d.schemas[def.Name] = schema
	}
	return d, nil
}

func (d *toolDecoder) decode(name string, input json.RawMessage) (agent.Decision, error) {
	schema, ok := d.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool %q", agent.ErrUnknownToolKind, name)
	}

	if len(strings.TrimSpace(string(input))) == 0 {
		input = json.RawMessage(`{}`)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(input))
	if err != nil {
		return nil, fmt.Errorf("%w: %s input is not JSON: %v", agent.ErrDecisionUnavailable, name, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: invalid %s input: %s",
			agent.ErrDecisionUnavailable, name, strings.Join(msgs, "; "))
	}

	switch name {
	case toolListMail:
		var args struct {
			MaxResults int `json:"maxResults"`
		}
		err = json.Unmarshal(input, &args)
		return agent.ListMail{MaxResults: args.MaxResults}, err
	case toolReadMail:
		var args struct {
			ID string `json:"id"`
		}
		err = json.Unmarshal(input, &args)
		return agent.ReadMail{ID: args.ID}, err
	case toolSendMail:
		var args struct {
			To      string `json:"to"`
			Subject string `json:"subject"`
			Body    string `json:"body"`
		}
		err = json.Unmarshal(input, &args)
		return agent.SendMail{To: args.To, Subject: args.Subject, Body: args.Body}, err
	case toolDeleteMail:
		var args struct {
			ID string `json:"id"`
		}
		err = json.Unmarshal(input, &args)
		return agent.DeleteMail{ID: args.ID}, err
	case toolRenderPage:
		var args struct {
			HTML string `json:"html"`
		}
		err = json.Unmarshal(input, &args)
		return agent.Terminal{Output: args.HTML}, err
	}

	return nil, fmt.Errorf("%w: unknown tool %q", agent.ErrUnknownToolKind, name)
}
