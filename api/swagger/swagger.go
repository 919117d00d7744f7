package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Tutoring Session API",
        "description": "Session lifecycle, make-up scheduling and deadline management",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Sessions", "description": "Session lifecycle"},
        {"name": "Enrollments", "description": "Enrollments and deadlines"},
        {"name": "Bookings", "description": "Make-up booking validation"},
        {"name": "MakeupProposals", "description": "Make-up proposal protocol"},
        {"name": "ExtensionRequests", "description": "Deadline extension workflow"},
        {"name": "Holidays", "description": "Holiday calendar"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate a user",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Schedule a session",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/sessions/{id}/attendance": {
            "put": {
                "tags": ["Sessions"],
                "summary": "Mark session attendance",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}/miss": {
            "put": {
                "tags": ["Sessions"],
                "summary": "Vacate a session for a make-up",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}/root-original": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Resolve the root original session of a make-up chain",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Register an enrollment and generate its schedule",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/enrollments/{id}/effective-end-date": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Compute the effective end date of an enrollment",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/bookings/validate": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Validate a candidate make-up booking",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/makeup-proposals": {
            "get": {
                "tags": ["MakeupProposals"],
                "summary": "List make-up proposals",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["MakeupProposals"],
                "summary": "Propose make-up slots for a vacated session",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/makeup-proposals/{id}/slots/{slotId}/approve": {
            "post": {
                "tags": ["MakeupProposals"],
                "summary": "Approve one proposed slot, booking the make-up",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/makeup-proposals/{id}/slots/{slotId}/reject": {
            "post": {
                "tags": ["MakeupProposals"],
                "summary": "Reject one proposed slot",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/extension-requests": {
            "get": {
                "tags": ["ExtensionRequests"],
                "summary": "List extension requests",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["ExtensionRequests"],
                "summary": "Request a deadline extension",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/extension-requests/{id}/approve": {
            "post": {
                "tags": ["ExtensionRequests"],
                "summary": "Approve an extension request",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/holidays": {
            "get": {
                "tags": ["Holidays"],
                "summary": "List holidays",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Holidays"],
                "summary": "Add a holiday",
                "responses": {"201": {"description": "Created"}}
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
