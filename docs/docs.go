// Package docs registers the admin API's Swagger spec with swaggo/swag's
// runtime registry, the same generated-file shape `swag init` produces;
// hand-maintained here rather than generated, since the bus's admin routes
// change slowly enough that regenerating on every edit isn't worth a build
// step.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Envelope Admin API",
        "description": "Introspection, pause/resume, and diagnostic endpoints for an in-process bus.",
        "version": "1.0"
    },
    "basePath": "/esb",
    "paths": {
        "/health": {
            "get": {
                "summary": "Aggregate backend connectivity",
                "responses": {"200": {"description": "ok"}, "503": {"description": "degraded"}}
            }
        },
        "/queues": {
            "get": {
                "summary": "List registered queues and their depth",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/queues/{name}": {
            "get": {
                "summary": "Fetch one queue's status",
                "responses": {"200": {"description": "ok"}, "404": {"description": "not found"}}
            }
        },
        "/queues/{name}/fault": {
            "get": {
                "summary": "Fetch the fault queue's status for a queue, if it has one",
                "responses": {"200": {"description": "ok"}, "404": {"description": "not found"}}
            }
        },
        "/queues/{name}/suspend": {
            "post": {
                "summary": "Suspend dispatch for a queue, reversibly",
                "responses": {"204": {"description": "suspended"}, "404": {"description": "not found"}}
            }
        },
        "/queues/{name}/resume": {
            "post": {
                "summary": "Resume dispatch for a queue",
                "responses": {"204": {"description": "resumed"}, "404": {"description": "not found"}}
            }
        },
        "/exchanges": {
            "get": {
                "summary": "List registered exchanges and their bindings",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/fault-queue-counts": {
            "get": {
                "summary": "Most recent fault-queue sweep counts",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/warnings": {
            "get": {
                "summary": "List diagnostic warnings",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/warnings/{id}/ack": {
            "post": {
                "summary": "Acknowledge a warning",
                "responses": {"204": {"description": "acknowledged"}, "404": {"description": "not found"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/esb",
	Schemes:          []string{},
	Title:            "Envelope Admin API",
	Description:      "Introspection, pause/resume, and diagnostic endpoints for an in-process bus.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
