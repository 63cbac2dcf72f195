// Package docs holds the Swagger document served at /swagger/doc.json.
// It is maintained by hand alongside the handler annotations; the router
// tests check that every route is described.
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
        "/auth/login": {
            "post": {
                "description": "Exchanges email and password for a bearer token and the user session.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.LoginResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "List active sessions",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Session"}}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Create a planning session",
                "parameters": [
                    {"description": "Session", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Session"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current caller",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Identity"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/sessions/{sessionId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Get a session",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "sessionId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Session"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/sessions/{sessionId}/stories": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "List the stories of a session",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "sessionId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Story"}}}
                }
            }
        },
        "/stories/{storyId}/votes/{userId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["rounds"],
                "summary": "Get one developer's vote",
                "parameters": [
                    {"type": "string", "description": "Story id", "name": "storyId", "in": "path", "required": true},
                    {"type": "string", "description": "User id", "name": "userId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Vote"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/users/developers": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "List developers",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.User"}}}
                }
            }
        },
        "/users/details": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Resolve users by id",
                "parameters": [
                    {"type": "string", "description": "Comma separated user ids", "name": "ids", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.User"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/stories": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["stories"],
                "summary": "List the stories of a session",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "sessionId", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Story"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Adds a pending story to a session. timeLimit is in minutes.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["stories"],
                "summary": "Create a story",
                "parameters": [
                    {"description": "Story", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateStoryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Story"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/stories/{storyId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["stories"],
                "summary": "Get a story",
                "parameters": [
                    {"type": "string", "description": "Story id", "name": "storyId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Story"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["stories"],
                "summary": "Delete a story and its votes",
                "parameters": [
                    {"type": "string", "description": "Story id", "name": "storyId", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/stories/{storyId}/start": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["rounds"],
                "summary": "Open voting on a story",
                "parameters": [
                    {"type": "string", "description": "Story id", "name": "storyId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Story"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/stories/{storyId}/votes": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Other developers' cards are hidden until the round is completed.",
                "produces": ["application/json"],
                "tags": ["rounds"],
                "summary": "List votes",
                "parameters": [
                    {"type": "string", "description": "Story id", "name": "storyId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Vote"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "value must be one of 1, 2, 3, 5, 8, 13, 21. One vote per developer.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rounds"],
                "summary": "Cast a vote",
                "parameters": [
                    {"type": "string", "description": "Story id", "name": "storyId", "in": "path", "required": true},
                    {"description": "Vote", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.SubmitVoteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Vote"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/stories/{storyId}/reveal": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["rounds"],
                "summary": "Reveal the votes and record the final estimate",
                "parameters": [
                    {"type": "string", "description": "Story id", "name": "storyId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.RevealResult"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/stories/{storyId}/round": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Who has voted and how many seconds are left. Clients without a websocket poll this.",
                "produces": ["application/json"],
                "tags": ["rounds"],
                "summary": "Round status",
                "parameters": [
                    {"type": "string", "description": "Story id", "name": "storyId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.RoundStatus"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "handler.CreateSessionRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "participants": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handler.CreateStoryRequest": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "timeLimit": {"type": "integer"},
                "initialEstimate": {"type": "integer"}
            }
        },
        "handler.SubmitVoteRequest": {
            "type": "object",
            "properties": {
                "value": {"type": "integer"},
                "comment": {"type": "string"}
            }
        },
        "model.Identity": {
            "type": "object",
            "properties": {
                "userId": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "role": {"type": "string"}
            }
        },
        "model.LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "model.LoginResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/model.Identity"}
            }
        },
        "model.Session": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "createdBy": {"type": "string"},
                "participants": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "model.Story": {
            "type": "object",
            "properties": {
                "storyId": {"type": "string"},
                "sessionId": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "status": {"type": "string"},
                "timeLimit": {"type": "integer"},
                "initialEstimate": {"type": "integer"},
                "finalEstimate": {"type": "integer"},
                "votingStartedAt": {"type": "string"},
                "completedAt": {"type": "string"},
                "completedBy": {"type": "string"},
                "allVotedAt": {"type": "string"},
                "voteCount": {"type": "integer"},
                "createdAt": {"type": "string"}
            }
        },
        "model.User": {
            "type": "object",
            "properties": {
                "userId": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "role": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "model.Vote": {
            "type": "object",
            "properties": {
                "voteId": {"type": "string"},
                "storyId": {"type": "string"},
                "userId": {"type": "string"},
                "value": {"type": "integer"},
                "comment": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "model.ParticipantStatus": {
            "type": "object",
            "properties": {
                "userId": {"type": "string"},
                "name": {"type": "string"},
                "hasVoted": {"type": "boolean"},
                "vote": {"type": "integer"},
                "comment": {"type": "string"}
            }
        },
        "model.RoundStatus": {
            "type": "object",
            "properties": {
                "story": {"$ref": "#/definitions/model.Story"},
                "participants": {"type": "array", "items": {"$ref": "#/definitions/model.ParticipantStatus"}},
                "votedCount": {"type": "integer"},
                "total": {"type": "integer"},
                "allVoted": {"type": "boolean"},
                "remainingSeconds": {"type": "integer"}
            }
        },
        "model.RevealResult": {
            "type": "object",
            "properties": {
                "story": {"$ref": "#/definitions/model.Story"},
                "votes": {"type": "array", "items": {"$ref": "#/definitions/model.Vote"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Planning Poker API",
	Description:      "Story estimation rounds with blind votes, countdown and live updates",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
