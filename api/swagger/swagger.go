package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Clinic Rota API",
        "description": "Weekly shift scheduling for clinic doctors",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Doctors", "description": "Read-only doctor directory"},
        {"name": "Rota", "description": "Shift generation, assignment and swaps"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/doctors": {
            "get": {
                "tags": ["Doctors"],
                "summary": "List doctors",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "specialization", "in": "query", "type": "string"},
                    {"name": "available", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"},
                    {"name": "sortBy", "in": "query", "type": "string"},
                    {"name": "sortOrder", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/doctors/{id}": {
            "get": {
                "tags": ["Doctors"],
                "summary": "Get doctor",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rota/generate": {
            "post": {
                "tags": ["Rota"],
                "summary": "Generate one week of shift assignments",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateRotaRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Window already scheduled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rota/assignments": {
            "post": {
                "tags": ["Rota"],
                "summary": "Manually assign a doctor to one shift",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignShiftRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflicting assignment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rota/swaps": {
            "post": {
                "tags": ["Rota"],
                "summary": "Swap the doctors of two schedule entries",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SwapShiftsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Entry not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rota/remaining": {
            "get": {
                "tags": ["Rota"],
                "summary": "Report under-filled slots in a window",
                "parameters": [
                    {"name": "start", "in": "query", "required": true, "type": "string"},
                    {"name": "end", "in": "query", "required": true, "type": "string"},
                    {"name": "doctorsPerShift", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rota/export": {
            "get": {
                "tags": ["Rota"],
                "summary": "Export the week's rota as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "start", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File payload"}
                }
            }
        }
    },
    "definitions": {
        "Doctor": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "specialization": {"type": "string"},
                "certifications": {"type": "array", "items": {"type": "string"}},
                "is_available": {"type": "boolean"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "ScheduleEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "doctor_id": {"type": "string"},
                "date": {"type": "string"},
                "day_of_week": {"type": "string"},
                "shift": {"type": "string", "enum": ["MORNING", "AFTERNOON"]},
                "is_off": {"type": "boolean"},
                "swapped_with_id": {"type": "string"},
                "swapped_at": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "GenerateRotaRequest": {
            "type": "object",
            "properties": {
                "startDate": {"type": "string", "example": "2025-03-03"},
                "doctorsPerShift": {"type": "integer", "minimum": 1}
            },
            "required": ["startDate", "doctorsPerShift"]
        },
        "AssignShiftRequest": {
            "type": "object",
            "properties": {
                "doctorId": {"type": "string"},
                "date": {"type": "string", "example": "2025-03-04"},
                "shift": {"type": "string", "enum": ["MORNING", "AFTERNOON"]}
            },
            "required": ["doctorId", "date", "shift"]
        },
        "SwapTarget": {
            "type": "object",
            "properties": {
                "doctorId": {"type": "string"},
                "date": {"type": "string"},
                "shift": {"type": "string", "enum": ["MORNING", "AFTERNOON"]}
            },
            "required": ["doctorId", "date", "shift"]
        },
        "SwapShiftsRequest": {
            "type": "object",
            "properties": {
                "first": {"$ref": "#/definitions/SwapTarget"},
                "second": {"$ref": "#/definitions/SwapTarget"}
            },
            "required": ["first", "second"]
        },
        "RemainingShift": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "shift": {"type": "string"},
                "dayOfWeek": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
