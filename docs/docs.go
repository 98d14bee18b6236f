// Package docs registers the OpenAPI document served under /v1/swagger.
// Regenerate with: swag init -g cmd/api/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/contact": {
            "post": {
                "tags": ["contact"],
                "summary": "Submit Contact Form",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "contact", "required": true, "schema": {"$ref": "#/definitions/domain.NewMessage"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.Response"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Admin sign-in",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "login", "required": true, "schema": {"$ref": "#/definitions/domain.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.Response"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/auth/oauth/{provider}/start": {
            "get": {
                "tags": ["auth"],
                "summary": "Start federated sign-in",
                "parameters": [
                    {"in": "path", "name": "provider", "required": true, "type": "string", "enum": ["google"]},
                    {"in": "query", "name": "redirect_to", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/auth/oauth/{provider}/callback": {
            "get": {
                "tags": ["auth"],
                "summary": "Federated sign-in callback",
                "parameters": [
                    {"in": "path", "name": "provider", "required": true, "type": "string"},
                    {"in": "query", "name": "state", "required": true, "type": "string"},
                    {"in": "query", "name": "code", "type": "string"},
                    {"in": "query", "name": "error", "type": "string"}
                ],
                "responses": {"302": {"description": "Found"}}
            }
        },
        "/auth/me": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Current session", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/auth/logout": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Sign out", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/admin/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["messages"],
                "summary": "List messages",
                "parameters": [
                    {"in": "query", "name": "q", "type": "string"},
                    {"in": "query", "name": "status", "type": "string", "enum": ["all", "new", "read", "replied"]}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/admin/messages/stats": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["messages"], "summary": "Inbox counters", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/admin/messages/stream": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["messages"], "summary": "Live message list", "produces": ["text/event-stream"], "responses": {"200": {"description": "OK"}}}
        },
        "/admin/messages/export": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["messages"], "summary": "Export messages", "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"], "responses": {"200": {"description": "OK", "schema": {"type": "file"}}}}
        },
        "/admin/messages/export/archive": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["messages"], "summary": "Archive an export", "produces": ["application/json"], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/response.Response"}}, "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/response.Response"}}, "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/admin/messages/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["messages"],
                "summary": "Get one message",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.Response"}}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["messages"],
                "summary": "Delete a message",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/admin/messages/{id}/status": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["messages"],
                "summary": "Change message status",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "status", "required": true, "schema": {"$ref": "#/definitions/domain.UpdateStatusRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        }
    },
    "definitions": {
        "domain.NewMessage": {
            "type": "object",
            "required": ["email", "message", "name"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "message": {"type": "string"},
                "date": {"type": "string"}
            }
        },
        "domain.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "otp": {"type": "string"}
            }
        },
        "domain.UpdateStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "enum": ["new", "read", "replied"]}}
        },
        "response.Response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {},
                "request_id": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Portfolio Backend API",
	Description:      "Contact form intake and admin inbox for the portfolio site.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
