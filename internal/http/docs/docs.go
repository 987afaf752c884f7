// Package docs registers the OpenAPI description of the admin endpoint with
// swag so gin-swagger can serve it at /swagger/doc.json.
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
        "/health": {
            "get": {
                "description": "Pushes a no-op through the storage lane. A stalled or full lane shows up as 503.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Liveness of the storage lane",
                "operationId": "health",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    },
                    "503": {
                        "description": "Storage unavailable",
                        "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}
                    }
                }
            }
        },
        "/stats": {
            "get": {
                "description": "Live counters; never touches the storage lane.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Server statistics",
                "operationId": "stats",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/handlers.Stats"}
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["Admin"],
                "summary": "Prometheus metrics",
                "operationId": "metrics",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "storage_unavailable"},
                "message": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "handlers.Stats": {
            "type": "object",
            "properties": {
                "active_sessions": {"type": "integer"},
                "processed_ops": {"type": "integer"},
                "queue_depth": {"type": "integer"},
                "uptime_seconds": {"type": "number"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "go-chat-tcp admin API",
	Description:      "Health, statistics and metrics of the TCP chat server.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
