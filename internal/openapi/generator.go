package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Generate builds the OpenAPI 3.1 document for the admin JSON API served
// under /api/v1.
func Generate(baseURL, version string) *openapi3.T {
	if version == "" {
		version = "1.0.0"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "cryams admin API",
			Description: "Moderation and profile management for the cryams anonymous message relay.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = componentSchemas()
	components.SecuritySchemes = openapi3.SecuritySchemes{
		"bearerAuth": &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
			},
		},
	}
	doc.Components = &components
	doc.Security = openapi3.SecurityRequirements{
		{"bearerAuth": {}},
	}

	doc.Paths = openapi3.NewPaths()
	addSessionPath(doc)
	addProfilePaths(doc)
	addRequestPaths(doc)

	return doc
}

func addSessionPath(doc *openapi3.T) {
	op := &openapi3.Operation{
		Tags:        []string{"session"},
		Summary:     "Log in",
		Description: "Exchange the administrator credentials for a session token.",
		OperationID: "create_session",
		Security:    &openapi3.SecurityRequirements{},
		RequestBody: jsonBody("Administrator credentials", ref("LoginRequest")),
		Responses:   newResponses("200", "Session token", ref("LoginResponse")),
	}
	doc.Paths.Set("/api/v1/session", &openapi3.PathItem{Post: op})
}

func addProfilePaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/profiles", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"profiles"},
			Summary:     "List profiles",
			OperationID: "list_profiles",
			Responses:   newResponses("200", "All profiles in creation order", listOf("Profile")),
		},
		Post: &openapi3.Operation{
			Tags:        []string{"profiles"},
			Summary:     "Create a profile",
			Description: "Create an approved profile directly, bypassing moderation.",
			OperationID: "create_profile",
			RequestBody: jsonBody("Profile fields", ref("ProfileInput")),
			Responses:   newResponses("201", "Created profile", ref("Profile")),
		},
	})

	doc.Paths.Set("/api/v1/profiles/{uuid}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{uuidParameter()},
		Get: &openapi3.Operation{
			Tags:        []string{"profiles"},
			Summary:     "Get a profile",
			OperationID: "get_profile",
			Responses:   newResponses("200", "Profile", ref("Profile")),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"profiles"},
			Summary:     "Delete a profile",
			Description: "Deleting a profile disables its sticker link immediately.",
			OperationID: "delete_profile",
			Responses:   newResponses("200", "Deleted", successSchema()),
		},
	})
}

func addRequestPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/requests", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"requests"},
			Summary:     "List pending requests",
			OperationID: "list_requests",
			Responses:   newResponses("200", "Pending requests in submission order", listOf("PendingRequest")),
		},
	})

	doc.Paths.Set("/api/v1/requests/{uuid}/approve", &openapi3.PathItem{
		Parameters: openapi3.Parameters{uuidParameter()},
		Post: &openapi3.Operation{
			Tags:        []string{"requests"},
			Summary:     "Approve a request",
			Description: "Turn the pending request into a profile under the same uuid.",
			OperationID: "approve_request",
			Responses:   withConflict(newResponses("200", "Created profile", ref("Profile"))),
		},
	})

	doc.Paths.Set("/api/v1/requests/{uuid}/reject", &openapi3.PathItem{
		Parameters: openapi3.Parameters{uuidParameter()},
		Post: &openapi3.Operation{
			Tags:        []string{"requests"},
			Summary:     "Reject a request",
			OperationID: "reject_request",
			Responses:   newResponses("200", "Rejected", successSchema()),
		},
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func jsonBody(description string, schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

func listOf(name string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"resource": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: ref(name),
					},
				},
				"meta": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"count": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
						},
					},
				},
			},
		},
	}
}

func successSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"success": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
			},
		},
	}
}

func uuidParameter() *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        "uuid",
			In:          "path",
			Required:    true,
			Description: "Profile or request id.",
			Schema: &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "uuid"},
			},
		},
	}
}

// newResponses builds a response set with the given success response and the
// standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	for _, e := range []struct{ code, desc string }{
		{"400", "Bad request"},
		{"401", "Unauthorized"},
		{"404", "Not found"},
		{"500", "Internal server error"},
	} {
		desc := e.desc
		responses.Set(e.code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(ref("ErrorResponse")),
			},
		})
	}

	return responses
}

func withConflict(responses *openapi3.Responses) *openapi3.Responses {
	desc := "A profile with this uuid already exists"
	responses.Set("409", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content:     openapi3.NewContentWithJSONSchemaRef(ref("ErrorResponse")),
		},
	})
	return responses
}
