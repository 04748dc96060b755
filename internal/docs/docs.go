// Package docs registers the OpenAPI document served under /swagger/. Keep
// it in step with the handler annotations in the status and probe modules.
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
                "tags": ["core"],
                "summary": "Service health",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/modules": {
            "get": {
                "tags": ["core"],
                "summary": "Registered modules",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/plugin.Status"}}}
                }
            }
        },
        "/status/snapshot": {
            "get": {
                "tags": ["status"],
                "summary": "Aggregate snapshot",
                "description": "Returns the last published snapshot. An older snapshot than max_age starts a background refresh.",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Staleness threshold (e.g. 30s)", "name": "max_age", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Snapshot"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.Problem"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/server.Problem"}}
                }
            }
        },
        "/status/refresh": {
            "post": {
                "tags": ["status"],
                "summary": "Refresh snapshot",
                "description": "Runs a fleet cycle and returns the new snapshot. Answers 202 with the current snapshot if the cycle outlasts the wait.",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/status.refreshResponse"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/status.refreshResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/server.Problem"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/server.Problem"}}
                }
            }
        },
        "/status/devices": {
            "get": {
                "tags": ["status"],
                "summary": "Device health",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Staleness threshold (e.g. 2m)", "name": "max_age", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/status.devicesResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.Problem"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/server.Problem"}}
                }
            }
        },
        "/status/subscribers": {
            "get": {
                "tags": ["status"],
                "summary": "Subscriber views",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Staleness threshold (e.g. 30s)", "name": "max_age", "in": "query"},
                    {"type": "boolean", "description": "Only online or only offline subscribers", "name": "online", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/status.subscribersResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.Problem"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/server.Problem"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/server.Problem"}}
                }
            }
        },
        "/status/subscribers/{id}": {
            "get": {
                "tags": ["status"],
                "summary": "Subscriber view",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Subscriber ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/reconcile.State"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.Problem"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/server.Problem"}}
                }
            }
        },
        "/status/stream": {
            "get": {
                "tags": ["status"],
                "summary": "Snapshot stream",
                "description": "WebSocket. Sends the current snapshot, then every newly published one.",
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        },
        "/probe/devices": {
            "post": {
                "tags": ["probe"],
                "summary": "Probe fleet",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/probe.Result"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/server.Problem"}}
                }
            }
        },
        "/probe/devices/{id}": {
            "post": {
                "tags": ["probe"],
                "summary": "Probe device",
                "description": "Sends ICMP echo requests to the device address.",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Device ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/probe.Result"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.Problem"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/server.Problem"}}
                }
            }
        }
    },
    "definitions": {
        "plugin.Status": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "version": {"type": "string"},
                "enabled": {"type": "boolean"}
            }
        },
        "server.Problem": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "title": {"type": "string"},
                "status": {"type": "integer"},
                "detail": {"type": "string"},
                "instance": {"type": "string"}
            }
        },
        "models.Session": {
            "type": "object",
            "properties": {
                "device_id": {"type": "string"},
                "device_name": {"type": "string"},
                "session_id": {"type": "string"},
                "login_name": {"type": "string"},
                "peer_address": {"type": "string"},
                "caller_id": {"type": "string"},
                "uptime": {"type": "string", "example": "3h4m5s"},
                "encoding": {"type": "string"},
                "service_type": {"type": "string"},
                "limit_bytes_in": {"type": "integer"},
                "limit_bytes_out": {"type": "integer"}
            }
        },
        "models.DeviceStatus": {
            "type": "object",
            "properties": {
                "device_id": {"type": "string"},
                "device_name": {"type": "string"},
                "state": {"type": "string", "enum": ["connected", "error", "disconnected"]},
                "active_users": {"type": "integer"},
                "last_sync": {"type": "string", "format": "date-time"},
                "last_checked": {"type": "string", "format": "date-time"},
                "error": {"type": "string"},
                "reason": {"type": "string", "enum": ["timeout", "refused", "auth-failed", "unreachable", "protocol-error", "unknown"]}
            }
        },
        "models.Snapshot": {
            "type": "object",
            "properties": {
                "total_active_users": {"type": "integer"},
                "devices": {"type": "array", "items": {"$ref": "#/definitions/models.DeviceStatus"}},
                "sessions": {"type": "array", "items": {"$ref": "#/definitions/models.Session"}},
                "last_updated": {"type": "string", "format": "date-time"},
                "cycle_duration": {"type": "string", "example": "1.2s"}
            }
        },
        "reconcile.State": {
            "type": "object",
            "properties": {
                "subscriber_id": {"type": "string"},
                "login_name": {"type": "string"},
                "status": {"type": "string", "enum": ["active", "inactive", "suspended", "pending"]},
                "device_id": {"type": "string"},
                "online": {"type": "boolean"},
                "quality": {"type": "string", "enum": ["fresh", "recent", "stable", "established"]},
                "session": {"$ref": "#/definitions/models.Session"}
            }
        },
        "reconcile.Summary": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "online": {"type": "integer"},
                "offline": {"type": "integer"}
            }
        },
        "status.devicesResponse": {
            "type": "object",
            "properties": {
                "last_updated": {"type": "string", "format": "date-time"},
                "devices": {"type": "array", "items": {"$ref": "#/definitions/models.DeviceStatus"}}
            }
        },
        "status.subscribersResponse": {
            "type": "object",
            "properties": {
                "last_updated": {"type": "string", "format": "date-time"},
                "summary": {"$ref": "#/definitions/reconcile.Summary"},
                "subscribers": {"type": "array", "items": {"$ref": "#/definitions/reconcile.State"}}
            }
        },
        "status.refreshResponse": {
            "type": "object",
            "properties": {
                "completed": {"type": "boolean"},
                "snapshot": {"$ref": "#/definitions/models.Snapshot"}
            }
        },
        "probe.Result": {
            "type": "object",
            "properties": {
                "device_id": {"type": "string"},
                "target": {"type": "string"},
                "reachable": {"type": "boolean"},
                "packets_sent": {"type": "integer"},
                "packets_recv": {"type": "integer"},
                "packet_loss": {"type": "number"},
                "latency_ms": {"type": "number"},
                "error": {"type": "string"},
                "checked_at": {"type": "string", "format": "date-time"},
                "last_poll_error": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "linkstat API",
	Description:      "Real-time PPP session status aggregated across RouterOS access servers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
