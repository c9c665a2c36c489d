package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Field limits mirrored from the input validation rules.
const (
	maxNameLength        = 50
	maxEmailLength       = 100
	maxDescriptionLength = 500
)

func componentSchemas() openapi3.Schemas {
	return openapi3.Schemas{
		"StickerSpec":    stickerSchema(),
		"Profile":        recordSchema(false),
		"PendingRequest": recordSchema(true),
		"ProfileInput":   profileInputSchema(),
		"LoginRequest":   loginRequestSchema(),
		"LoginResponse":  loginResponseSchema(),
		"ErrorResponse":  errorSchema(),
	}
}

func stringSchema(description string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: description}}
}

func limitedString(description string, minLen, maxLen uint64) *openapi3.SchemaRef {
	s := stringSchema(description)
	s.Value.MinLength = minLen
	s.Value.MaxLength = &maxLen
	return s
}

func integerSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}}
}

func stickerSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:        &openapi3.Types{"object"},
			Description: "Sticker sheet layout: Rows x Cols stickers on one A4 page.",
			Properties: openapi3.Schemas{
				"label": stringSchema("Layout label such as \"3x3\"."),
				"rows":  integerSchema(),
				"cols":  integerSchema(),
				"count": integerSchema(),
			},
			Required: []string{"label", "rows", "cols", "count"},
		},
	}
}

// recordSchema describes a Profile, or a PendingRequest when pending is set.
func recordSchema(pending bool) *openapi3.SchemaRef {
	props := openapi3.Schemas{
		"uuid":        &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "uuid"}},
		"name":        stringSchema("Display name of the profile owner."),
		"email":       stringSchema("Address messages are relayed to."),
		"description": stringSchema(""),
		"createdAt":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}},
		"stickerPDF":  ref("StickerSpec"),
	}
	required := []string{"uuid", "name", "email", "description", "createdAt"}
	if pending {
		props["status"] = &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type: &openapi3.Types{"string"},
				Enum: []interface{}{"pending"},
			},
		}
		required = append(required, "status")
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
			Required:   required,
		},
	}
}

func profileInputSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"name":        limitedString("Letters, spaces, hyphens and dots.", 2, maxNameLength),
				"email":       limitedString("", 0, maxEmailLength),
				"description": limitedString("", 0, maxDescriptionLength),
				"sticker":     stringSchema("Optional sticker layout label such as \"2x3\"."),
			},
			Required: []string{"name", "email"},
		},
	}
}

func loginRequestSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"username": limitedString("", 3, 30),
				"password": stringSchema(""),
			},
			Required: []string{"username", "password"},
		},
	}
}

func loginResponseSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"session_token": stringSchema("JWT to send as a Bearer token."),
				"token_type":    stringSchema(""),
				"expires_in":    integerSchema(),
				"username":      stringSchema(""),
			},
		},
	}
}

func errorSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    integerSchema(),
							"message": stringSchema(""),
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}
}
