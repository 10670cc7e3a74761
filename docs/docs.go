// Package docs registers the OpenAPI description of the attendance API with swag.
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
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Service is up", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/attendance/process": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["attendance"],
                "summary": "Process attendance",
                "description": "Join an attendance export with an optional gradebook and count sessions attended per student.",
                "parameters": [
                    {"type": "file", "description": "Attendance CSV", "name": "attendance_file", "in": "formData", "required": true},
                    {"type": "file", "description": "Gradebook CSV", "name": "gradebook_file", "in": "formData"},
                    {"type": "string", "description": "Window start (YYYY-MM-DD)", "name": "start_date", "in": "formData", "required": true},
                    {"type": "string", "description": "Window end (YYYY-MM-DD)", "name": "end_date", "in": "formData", "required": true},
                    {"type": "string", "description": "Artifact name prefix", "name": "out_prefix", "in": "formData"},
                    {"enum": ["auto", "id", "email", "none"], "type": "string", "description": "Join mode", "name": "join_mode", "in": "formData"},
                    {"type": "boolean", "default": true, "description": "Also build the presence matrix", "name": "matrix", "in": "formData"},
                    {"type": "string", "description": "Course label recorded with the run", "name": "course", "in": "formData"},
                    {"type": "string", "description": "Who asked for the run", "name": "requested_by", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "Run result", "schema": {"$ref": "#/definitions/service.ProcessResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "504": {"description": "Processing timed out", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "List runs",
                "parameters": [
                    {"type": "integer", "description": "Maximum runs to return", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Recent runs", "schema": {"$ref": "#/definitions/handler.HistoryResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/history/{run_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Get run",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "run_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Run", "schema": {"$ref": "#/definitions/model.RunRecord"}},
                    "404": {"description": "Run not found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/download/{run_id}/{filename}": {
            "get": {
                "produces": ["text/csv"],
                "tags": ["attendance"],
                "summary": "Download artifact",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "run_id", "in": "path", "required": true},
                    {"type": "string", "description": "Artifact file name", "name": "filename", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "CSV file", "schema": {"type": "file"}},
                    "404": {"description": "Artifact not found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "handler.HistoryResponse": {
            "type": "object",
            "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/model.RunRecord"}}}
        },
        "model.RunSummary": {
            "type": "object",
            "properties": {
                "students_total": {"type": "integer"},
                "students_with_attendance": {"type": "integer"},
                "coverage_pct": {"type": "number"},
                "lecture_dates": {"type": "array", "items": {"type": "string"}},
                "generated_at": {"type": "string"}
            }
        },
        "model.Diagnostics": {
            "type": "object",
            "properties": {
                "skipped_rows": {"type": "integer"},
                "filtered_out": {"type": "integer"},
                "ambiguous_count": {"type": "integer"},
                "unmatched_count": {"type": "integer"},
                "issues": {"type": "array", "items": {"$ref": "#/definitions/model.RowIssue"}}
            }
        },
        "model.RowIssue": {
            "type": "object",
            "properties": {
                "table": {"type": "string"},
                "row": {"type": "integer"},
                "reason": {"type": "string"}
            }
        },
        "model.Artifact": {
            "type": "object",
            "properties": {
                "filename": {"type": "string"},
                "relative_path": {"type": "string"}
            }
        },
        "model.RunRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "course": {"type": "string"},
                "requested_by": {"type": "string"},
                "out_prefix": {"type": "string"},
                "join_mode": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "status": {"type": "string"},
                "notes": {"type": "string"},
                "summary": {"$ref": "#/definitions/model.RunSummary"},
                "diagnostics": {"$ref": "#/definitions/model.Diagnostics"},
                "artifacts": {"type": "array", "items": {"$ref": "#/definitions/model.Artifact"}},
                "run_at": {"type": "string"}
            }
        },
        "service.ArtifactLink": {
            "type": "object",
            "properties": {
                "filename": {"type": "string"},
                "relative_path": {"type": "string"},
                "download_url": {"type": "string"}
            }
        },
        "service.ProcessResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "run_id": {"type": "string"},
                "summary": {"$ref": "#/definitions/model.RunSummary"},
                "counts_preview": {"type": "array", "items": {"type": "object", "additionalProperties": true}},
                "counts_artifact": {"$ref": "#/definitions/service.ArtifactLink"},
                "matrix_artifact": {"$ref": "#/definitions/service.ArtifactLink"},
                "diagnostics": {"$ref": "#/definitions/model.Diagnostics"},
                "effective_join_mode": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Attendance Automator API",
	Description:      "Reconciles attendance exports with a course gradebook and reports per-student session counts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
