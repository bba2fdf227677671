package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "CyclePact API Documentation",
        "title": "CyclePact API",
        "version": "1.0"
    },
    "host": "localhost:8080",
    "basePath": "/api/v1",
    "schemes": ["http"],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Health"],
                "summary": "Health Check",
                "description": "Check if server is running",
                "responses": {
                    "200": {
                        "description": "Server is healthy"
                    }
                }
            }
        },
        "/api/v1/agenda": {
            "get": {
                "tags": ["Agenda"],
                "summary": "Daily agenda",
                "description": "Today and Overdue buckets across recurring tasks, extraordinary tasks and events",
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "query",
                        "name": "date",
                        "description": "Reference date (YYYY-MM-DD), defaults to now",
                        "required": false,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Agenda buckets with per-kind breakdown"
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            }
        },
        "/api/v1/actions": {
            "post": {
                "tags": ["Actions"],
                "summary": "Register a recurring action",
                "description": "Expands the frequency rule over the active cycle and materializes task instances",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "action",
                        "description": "Action definition with frequency rule",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "action_id": {
                                    "type": "string",
                                    "example": "6e3f0c0e-32b1-4c52-9e6e-0f6a3b1d2c4a"
                                },
                                "goal_id": {
                                    "type": "string"
                                },
                                "text": {
                                    "type": "string",
                                    "example": "Run 5km"
                                },
                                "frequency": {
                                    "type": "object",
                                    "properties": {
                                        "kind": {
                                            "type": "string",
                                            "example": "weekly"
                                        },
                                        "weekdays": {
                                            "type": "array",
                                            "items": {"type": "integer"}
                                        },
                                        "day_of_month": {
                                            "type": "integer"
                                        },
                                        "last_day": {
                                            "type": "boolean"
                                        }
                                    }
                                }
                            }
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Action registered and instances materialized"
                    },
                    "409": {
                        "description": "No active enrollment"
                    }
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Type 'Bearer' followed by a space and JWT token"
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "CyclePact API",
	Description:      "CyclePact API Documentation",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
