// Package docs holds the OpenAPI document of the ragd HTTP API.
//
// Regenerate with `swag init -g cmd/ragd/docs.go -o docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "ok", "schema": {"type": "string"}}}
            }
        },
        "/readyz": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "ready", "schema": {"type": "string"}},
                    "503": {"description": "loading", "schema": {"type": "string"}}
                }
            }
        },
        "/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List the model catalog",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Runtime status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
            }
        },
        "/switch": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Switch the active model",
                "parameters": [{"description": "target model", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.SwitchRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SwitchResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}},
                    "507": {"description": "Insufficient Storage", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}}
                }
            }
        },
        "/documents/{id}/ingest": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Ingest a document into its collection",
                "parameters": [
                    {"type": "string", "description": "document id", "name": "id", "in": "path", "required": true},
                    {"description": "source file", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.IngestRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.IngestResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}}
                }
            }
        },
        "/documents/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Report how many chunks a document has",
                "parameters": [{"type": "string", "description": "document id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.IngestResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}}
                }
            },
            "delete": {
                "tags": ["documents"],
                "summary": "Drop a document's collection",
                "parameters": [{"type": "string", "description": "document id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}}
                }
            }
        },
        "/answer": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["answer"],
                "summary": "Answer a question from documents, the model and the web",
                "parameters": [{"description": "question", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.AnswerRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.AnswerResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/herodot.ErrorContainer"}}
                }
            }
        }
    },
    "definitions": {
        "herodot.DefaultError": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 404},
                "status": {"type": "string", "example": "Not Found"},
                "message": {"type": "string", "example": "model not found: qwen2.5-14b"}
            }
        },
        "herodot.ErrorContainer": {
            "type": "object",
            "properties": {"error": {"$ref": "#/definitions/herodot.DefaultError"}}
        },
        "types.Model": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "qwen2.5-3b"},
                "name": {"type": "string"},
                "path": {"type": "string"},
                "tag": {"type": "string", "example": "qwen2.5:3b"},
                "size_mb": {"type": "integer", "example": 2100},
                "context_window": {"type": "integer", "example": 4096},
                "quality_tier": {"type": "string", "example": "High"},
                "params": {"type": "string", "example": "3B"},
                "description": {"type": "string"}
            }
        },
        "types.LoadAttempt": {
            "type": "object",
            "properties": {
                "model_id": {"type": "string"},
                "reason": {"type": "string", "example": "insufficient_resources"},
                "error": {"type": "string"}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}},
                "default": {"type": "string", "example": "deepseek-r1-1.5b"}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "example": "ready"},
                "active_model_id": {"type": "string", "example": "deepseek-r1-1.5b"},
                "desired_model_id": {"type": "string", "example": "deepseek-r1-1.5b"},
                "resident": {"type": "integer", "example": 1},
                "budget_mb": {"type": "integer", "example": 8192},
                "margin_mb": {"type": "integer", "example": 512},
                "used_est_mb": {"type": "integer", "example": 1150},
                "queue_len": {"type": "integer", "example": 0},
                "inflight": {"type": "integer", "example": 1},
                "max_queue_depth": {"type": "integer", "example": 32},
                "last_error": {"type": "string"},
                "last_attempts": {"type": "array", "items": {"$ref": "#/definitions/types.LoadAttempt"}},
                "uptime_seconds": {"type": "integer", "example": 3600},
                "server_time_unix": {"type": "integer", "example": 1700000000},
                "loads_total": {"type": "integer", "example": 3},
                "switches_total": {"type": "integer", "example": 1},
                "fallbacks_total": {"type": "integer", "example": 0},
                "recent_events": {"type": "array", "items": {"$ref": "#/definitions/types.RuntimeEvent"}}
            }
        },
        "types.RuntimeEvent": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "switch_done"},
                "model_id": {"type": "string", "example": "qwen2.5-3b"},
                "fields": {"type": "object", "additionalProperties": true},
                "at_unix": {"type": "integer", "example": 1700000000}
            }
        },
        "types.SwitchRequest": {
            "type": "object",
            "properties": {"model": {"type": "string", "example": "qwen2.5-3b"}}
        },
        "types.SwitchResponse": {
            "type": "object",
            "properties": {
                "model": {"type": "string", "example": "qwen2.5-3b"},
                "state": {"type": "string", "example": "ready"},
                "op_id": {"type": "string"}
            }
        },
        "types.IngestRequest": {
            "type": "object",
            "properties": {"path": {"type": "string", "example": "/data/uploads/handbook.pdf"}}
        },
        "types.IngestResponse": {
            "type": "object",
            "properties": {
                "document_id": {"type": "string", "example": "handbook"},
                "collection": {"type": "string", "example": "doc_handbook"},
                "chunks": {"type": "integer", "example": 42}
            }
        },
        "types.AnswerRequest": {
            "type": "object",
            "properties": {
                "question": {"type": "string", "example": "Wie viele Urlaubstage habe ich?"},
                "document_ids": {"type": "array", "items": {"type": "string"}, "example": ["handbook"]}
            }
        },
        "types.Source": {
            "type": "object",
            "properties": {
                "document_id": {"type": "string", "example": "handbook"},
                "chunk_index": {"type": "integer", "example": 2},
                "distance": {"type": "number", "example": 0.21}
            }
        },
        "types.AnswerResponse": {
            "type": "object",
            "properties": {
                "answer": {"type": "string"},
                "source_type": {"type": "string", "example": "rag"},
                "context_used": {"type": "boolean"},
                "web_search_used": {"type": "boolean"},
                "sources": {"type": "array", "items": {"$ref": "#/definitions/types.Source"}},
                "web_sources": {"type": "array", "items": {"type": "string"}, "example": ["web search"]},
                "source_count": {"type": "integer", "example": 3}
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
	Title:            "ragd API",
	Description:      "Retrieval-augmented answers over local documents with a single managed model runtime.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
