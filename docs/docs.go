// Package docs registers the OpenAPI document served by gin-swagger.
// Keep in sync with the godoc annotations in internal/http/handlers
// (regenerate with `swag init -g internal/http/router.go`).
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/.well-known/atproto-did": {
            "get": {
                "description": "Host-based form used by atproto resolvers: Host alice.example.com resolves username alice under example.com.",
                "produces": ["text/plain", "application/json"],
                "tags": ["Handles"],
                "summary": "Resolve the request host to its DID",
                "operationId": "hostWellKnownDID",
                "responses": {
                    "200": {"description": "DID", "schema": {"type": "string"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/{domain}": {
            "get": {
                "description": "Derives the claim page state from the query string: look up the existing account (handle), then validate and claim the proposed username (new-handle) under domain.",
                "produces": ["application/json"],
                "tags": ["Claims"],
                "summary": "Claim workflow view",
                "operationId": "claimView",
                "parameters": [
                    {"type": "string", "example": "example.com", "description": "Domain", "name": "domain", "in": "path", "required": true},
                    {"type": "string", "example": "alice.bsky.social", "description": "Existing handle", "name": "handle", "in": "query"},
                    {"type": "string", "example": "alice", "description": "Proposed username", "name": "new-handle", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.View"}}
                }
            }
        },
        "/{domain}/{username}": {
            "get": {
                "description": "Looks up the claim for username under domain and the current profile of its DID.",
                "produces": ["application/json"],
                "tags": ["Handles"],
                "summary": "Claimed handle with profile",
                "operationId": "getHandle",
                "parameters": [
                    {"type": "string", "example": "example.com", "description": "Domain", "name": "domain", "in": "path", "required": true},
                    {"type": "string", "example": "alice", "description": "Username", "name": "username", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HandleResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/{domain}/{username}/.well-known/atproto-did": {
            "get": {
                "description": "Returns the DID claimed for username under domain as text/plain, the atproto HTTPS handle resolution document.",
                "produces": ["text/plain", "application/json"],
                "tags": ["Handles"],
                "summary": "Resolve a handle to its DID",
                "operationId": "wellKnownDID",
                "parameters": [
                    {"type": "string", "example": "example.com", "description": "Domain", "name": "domain", "in": "path", "required": true},
                    {"type": "string", "example": "alice", "description": "Username", "name": "username", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "DID", "schema": {"type": "string"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Profile": {
            "type": "object",
            "properties": {
                "avatar": {"type": "string"},
                "description": {"type": "string"},
                "did": {"type": "string", "example": "did:plc:ewvi7nxzyoun6zhxrhs64oiz"},
                "display_name": {"type": "string", "example": "Alice"},
                "handle": {"type": "string", "example": "alice.bsky.social"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "resource not found"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "handlers.HandleResponse": {
            "type": "object",
            "properties": {
                "did": {"type": "string", "example": "did:plc:ewvi7nxzyoun6zhxrhs64oiz"},
                "domain": {"type": "string", "example": "example.com"},
                "profile": {"$ref": "#/definitions/domain.Profile"},
                "username": {"type": "string", "example": "alice"}
            }
        },
        "services.View": {
            "type": "object",
            "properties": {
                "can_propose": {"type": "boolean"},
                "claimed": {"type": "boolean"},
                "domain": {"type": "string", "example": "example.com"},
                "error": {"type": "string"},
                "handle": {"type": "string", "example": "alice.bsky.social"},
                "new_handle": {"type": "string", "example": "alice.example.com"},
                "profile": {"$ref": "#/definitions/domain.Profile"},
                "state": {
                    "type": "string",
                    "enum": ["start", "account_not_found", "profile_found", "claimed", "rejected", "taken", "error"]
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "atproto handles API",
	Description:      "Vanity atproto handles under your own domain: claim a username for an existing Bluesky account and serve its well-known DID document.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
