// Package docs registers the swagger document served under /swagger.
// It follows the handler annotations; regenerate with `swag init -g cmd/server/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Servo Bridge Maintainers"
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
        "/health": {
            "get": {
                "description": "Get overall service health including the serial channel state",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "Service is healthy",
                        "schema": {"$ref": "#/definitions/handler.HealthResponse"}
                    },
                    "503": {
                        "description": "Serial channel closed",
                        "schema": {"$ref": "#/definitions/handler.HealthResponse"}
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "description": "Ready only while the serial channel is open",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Service is ready",
                        "schema": {"type": "object", "additionalProperties": true}
                    },
                    "503": {
                        "description": "Serial channel not open",
                        "schema": {"type": "object", "additionalProperties": true}
                    }
                }
            }
        },
        "/live": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "Service is alive",
                        "schema": {"type": "object", "additionalProperties": true}
                    }
                }
            }
        },
        "/api/v1/status": {
            "get": {
                "description": "Serial link state, joint envelopes, home position and connected clients",
                "produces": ["application/json"],
                "tags": ["Serial"],
                "summary": "Bridge status",
                "responses": {
                    "200": {
                        "description": "Bridge status",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "object",
                                            "properties": {
                                                "serial": {"$ref": "#/definitions/service.LinkStatus"},
                                                "joints": {
                                                    "type": "array",
                                                    "items": {"$ref": "#/definitions/model.Envelope"}
                                                },
                                                "home": {
                                                    "type": "array",
                                                    "items": {"type": "integer"}
                                                }
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    }
                }
            }
        },
        "/api/v1/serial/ports": {
            "get": {
                "description": "Enumerate serial ports, known controller boards first",
                "produces": ["application/json"],
                "tags": ["Serial"],
                "summary": "List serial ports",
                "responses": {
                    "200": {
                        "description": "Serial ports",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "object",
                                            "properties": {
                                                "ports": {
                                                    "type": "array",
                                                    "items": {"$ref": "#/definitions/discovery.SerialPort"}
                                                },
                                                "count": {"type": "integer"}
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "500": {
                        "description": "Enumeration failed",
                        "schema": {"$ref": "#/definitions/utils.APIResponse"}
                    },
                    "503": {
                        "description": "Port discovery unavailable",
                        "schema": {"$ref": "#/definitions/utils.APIResponse"}
                    }
                }
            }
        },
        "/api/v1/serial/reopen": {
            "post": {
                "description": "Operator action; never triggered automatically",
                "produces": ["application/json"],
                "tags": ["Serial"],
                "summary": "Reopen serial channel",
                "responses": {
                    "200": {
                        "description": "Serial channel reopened",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {"$ref": "#/definitions/service.LinkStatus"}
                                    }
                                }
                            ]
                        }
                    },
                    "403": {
                        "description": "Manual reopen is disabled",
                        "schema": {"$ref": "#/definitions/utils.APIResponse"}
                    },
                    "502": {
                        "description": "Reopen failed",
                        "schema": {"$ref": "#/definitions/utils.APIResponse"}
                    }
                }
            }
        }
    },
    "definitions": {
        "discovery.SerialPort": {
            "type": "object",
            "properties": {
                "board": {"type": "string"},
                "is_usb": {"type": "boolean"},
                "name": {"type": "string"},
                "product": {"type": "string"},
                "product_id": {"type": "string"},
                "serial_number": {"type": "string"},
                "vendor_id": {"type": "string"}
            }
        },
        "handler.CheckResult": {
            "type": "object",
            "properties": {
                "data": {"type": "object", "additionalProperties": true},
                "message": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "checks": {
                    "type": "object",
                    "additionalProperties": {"$ref": "#/definitions/handler.CheckResult"}
                },
                "service": {"type": "string"},
                "status": {"type": "string"},
                "timestamp": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"}
            }
        },
        "model.Envelope": {
            "type": "object",
            "properties": {
                "joint": {"type": "string"},
                "max": {"type": "integer"},
                "min": {"type": "integer"}
            }
        },
        "protocol.ProtocolStats": {
            "type": "object",
            "properties": {
                "average_latency": {"type": "integer"},
                "bytes_written": {"type": "integer"},
                "error_count": {"type": "integer"},
                "is_connected": {"type": "boolean"},
                "last_activity": {"type": "string"},
                "operation_count": {"type": "integer"}
            }
        },
        "service.LinkStatus": {
            "type": "object",
            "properties": {
                "baud_rate": {"type": "integer"},
                "last_error": {"type": "string"},
                "last_error_at": {"type": "string"},
                "open": {"type": "boolean"},
                "port": {"type": "string"},
                "queue_capacity": {"type": "integer"},
                "queue_depth": {"type": "integer"},
                "stats": {"$ref": "#/definitions/protocol.ProtocolStats"},
                "write_timeout": {"type": "integer"}
            }
        },
        "utils.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "utils.APIResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"$ref": "#/definitions/utils.APIError"},
                "message": {"type": "string"},
                "request_id": {"type": "string"},
                "success": {"type": "boolean"},
                "timestamp": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Servo Bridge API",
	Description:      "Bridges WebSocket position updates from control panels to a servo arm controller over one serial channel.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
