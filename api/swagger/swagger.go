package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Results API",
        "description": "Exam results core: marks, approval, grading, rankings, publication and pin-gated lookups",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Staff authentication"},
        {"name": "Results", "description": "Subject mark submission and approval"},
        {"name": "Grading", "description": "Grading scale management and resolution"},
        {"name": "Rankings", "description": "Subject and class competition rankings"},
        {"name": "Summaries", "description": "Per-student result roll-ups"},
        {"name": "Publications", "description": "Exam publication windows"},
        {"name": "Pins", "description": "Budgeted result-check tokens"},
        {"name": "Corrections", "description": "Post-approval grade corrections"},
        {"name": "Lookup", "description": "Anonymous pin-gated result checks"},
        {"name": "Exports", "description": "Result sheet and slip exports"}
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
        "/lookup": {
            "post": {
                "summary": "Check a published result with a pin",
                "tags": ["Lookup"],
                "responses": {
                    "200": {"description": "Result view", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Gate closed or pin unusable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
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
                "pagination": {"type": "object"},
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
