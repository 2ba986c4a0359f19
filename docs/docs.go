// Package docs holds the OpenAPI document served at /swagger.
//
// Regenerate after changing handler annotations:
//
//	swag init -g cmd/sgc/main.go -o docs --parseInternal
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
        "/auth/login": {
            "post": {
                "description": "Returns the person id bound to the user. No session is created.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Check credentials",
                "operationId": "login",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LoginResponse"}},
                    "400": {"description": "Invalid body", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Bad credentials", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/commitments": {
            "get": {
                "security": [{"UserID": []}],
                "produces": ["application/json"],
                "tags": ["Commitments"],
                "summary": "List commitments",
                "operationId": "listCommitments",
                "parameters": [
                    {"enum": ["shared", "mine", "all"], "type": "string", "default": "shared", "name": "view", "in": "query"},
                    {"type": "string", "name": "search", "in": "query"},
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "priority", "in": "query"},
                    {"type": "string", "format": "date", "name": "due", "in": "query"},
                    {"type": "string", "name": "progress", "in": "query"},
                    {"type": "string", "name": "month", "in": "query"},
                    {"type": "integer", "name": "year", "in": "query"},
                    {"type": "integer", "name": "area", "in": "query"},
                    {"type": "integer", "name": "department", "in": "query"},
                    {"enum": ["asc", "desc"], "type": "string", "name": "order", "in": "query"},
                    {"minimum": 1, "type": "integer", "default": 1, "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListCommitmentsResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthenticated", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Outside the caller's scope", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"UserID": []}],
                "description": "Creates a Pendiente commitment at 0% progress. With an Idempotency-Key, a retry returns the commitment created first (200, Idempotent-Replay: true).",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Commitments"],
                "summary": "Create a commitment",
                "operationId": "createCommitment",
                "parameters": [
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Commitment", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateCommitmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replayed creation"},
                    "201": {"description": "Created"},
                    "400": {"description": "Invalid body", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Department outside scope", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.CreateCommitmentRequest": {
            "type": "object",
            "required": ["department_id", "description", "due_date", "priority"],
            "properties": {
                "area_id": {"type": "integer", "example": 1},
                "comment": {"type": "string"},
                "department_id": {"type": "integer", "example": 3},
                "description": {"type": "string", "maxLength": 4000, "example": "Enviar acta firmada"},
                "direction_comment": {"type": "string"},
                "due_date": {"type": "string", "example": "2025-03-20"},
                "origin_id": {"type": "integer", "example": 2},
                "priority": {"type": "string", "maxLength": 32, "example": "Alta"},
                "referents": {"type": "array", "items": {"type": "integer"}}
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
        "handlers.ListCommitmentsResponse": {
            "type": "object",
            "properties": {
                "commitments": {"type": "array", "items": {"type": "object"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.LoginRequest": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {
                "password": {"type": "string", "example": "s3cret-pass"},
                "username": {"type": "string", "example": "jperez"}
            }
        },
        "handlers.LoginResponse": {
            "type": "object",
            "properties": {
                "person_id": {"type": "integer", "example": 4}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "has_next": {"type": "boolean"},
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "UserID": {"type": "apiKey", "name": "X-User-ID", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "SGC-Maule API",
	Description:      "Commitment tracking for a hierarchical public-health organization.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
