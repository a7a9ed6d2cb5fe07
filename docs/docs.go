// Package docs holds the OpenAPI document for the slotd HTTP API.
// Regenerate with `make swagger-gen` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "slotd maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/chat/completions": {
            "post": {
                "description": "Forwards a non-streaming completion request to a ready worker. Failing workers are evicted and the request is retried on the next one.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["proxy"],
                "summary": "Chat completion",
                "parameters": [
                    {
                        "description": "OpenAI-style completion request",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.CompletionRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/models": {
            "get": {
                "description": "Forwards the model listing to a ready worker.",
                "produces": ["application/json"],
                "tags": ["proxy"],
                "summary": "List models",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {}}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/cancel/{id}": {
            "post": {
                "description": "Broadcasts a cancellation to every bound worker. Succeeds when at least one worker applied it.",
                "produces": ["application/json"],
                "tags": ["proxy"],
                "summary": "Cancel a request",
                "parameters": [
                    {"type": "string", "description": "Request id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.CancelResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.CancelResponse"}}
                }
            }
        },
        "/live": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ReadyResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ReadyResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness (deprecated alias of /ready)",
                "deprecated": true,
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ReadyResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ReadyResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Pool status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.CompletionRequest": {
            "type": "object",
            "properties": {
                "model": {"type": "string"},
                "stream": {"type": "boolean"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "integer"},
                "type": {"type": "string"}
            }
        },
        "types.CancelResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "completed": {"type": "array", "items": {"type": "string"}},
                "failed": {"type": "array", "items": {"type": "string"}}
            }
        },
        "types.ReadyResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "ready_children": {"type": "array", "items": {"type": "string"}},
                "unhealthy_children": {"type": "array", "items": {"type": "string"}},
                "total_children": {"type": "integer"}
            }
        },
        "types.PortTriple": {
            "type": "object",
            "properties": {
                "api": {"type": "integer"},
                "stream": {"type": "integer"},
                "debug": {"type": "integer"}
            }
        },
        "types.SlotStatus": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "state": {"type": "string"},
                "profile": {"type": "string"},
                "ports": {"$ref": "#/definitions/types.PortTriple"},
                "pid": {"type": "integer"},
                "generation": {"type": "integer"},
                "launch_id": {"type": "string"},
                "consecutive_failures": {"type": "integer"},
                "last_error": {"type": "string"},
                "ready_since_unix": {"type": "integer"}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "slots": {"type": "array", "items": {"$ref": "#/definitions/types.SlotStatus"}},
                "queue": {"type": "array", "items": {"type": "string"}},
                "pool_size": {"type": "integer"},
                "ready_count": {"type": "integer"},
                "evictions_total": {"type": "integer"},
                "launches_total": {"type": "integer"},
                "uptime_seconds": {"type": "integer"},
                "server_time_unix": {"type": "integer"},
                "shutting_down": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "slotd API",
	Description:      "Coordinator that keeps a fixed pool of worker processes alive and routes requests across them.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
