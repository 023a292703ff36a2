package storyparser

import "fmt"

const promptTemplate = `Parse the following family story and identify all mentioned family members, their specific relationship types (biological, adoptive, etc.), marriages, and key memories. Return a JSON list of members.
Story: %s`

func buildPrompt(story string) string {
	return fmt.Sprintf(promptTemplate, story)
}

// schema is a Gemini responseSchema, an OpenAPI subset with upper-case
// type names.
type schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*schema `json:"properties,omitempty"`
	Items       *schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

func str(description string) *schema {
	return &schema{Type: "STRING", Description: description}
}

// responseSchema describes {"members": [...]}.
func responseSchema() *schema {
	memory := &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"title":   str(""),
			"content": str(""),
			"type":    str("text"),
			"date":    str(""),
		},
		Required: []string{"content", "type"},
	}
	person := &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"firstName":    str(""),
			"lastName":     str(""),
			"gender":       str("male, female, other, or unknown"),
			"bio":          str(""),
			"birthDate":    str("YYYY-MM-DD if known"),
			"marriageDate": str("YYYY-MM-DD if known"),
			"memories":     {Type: "ARRAY", Items: memory},
		},
		Required: []string{"firstName", "lastName", "gender"},
	}
	return &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"members": {Type: "ARRAY", Items: person},
		},
		Required: []string{"members"},
	}
}
