package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the portal API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>deptconnect portal API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// OpenAPI document for the portal API.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "deptconnect-portal", "version": "v0.1.0", "description": "Serves one signed-in user. Send the token returned by the auth calls as a bearer token; requests without it see a signed-out session." },
  "components": {
    "securitySchemes": {
      "session": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" },
      "sessionQuery": { "type": "apiKey", "in": "query", "name": "access_token" }
    }
  },
  "security": [ { "session": [] }, { "sessionQuery": [] } ],
  "paths": {
    "/api/v1/view": {
      "get": { "summary": "Current view model: session status, profile and live feed", "responses": { "200": { "description": "view model" } } }
    },
    "/api/v1/view/stream": {
      "get": { "summary": "Server-sent events; one 'view' event per change", "responses": { "200": { "description": "text/event-stream" } } }
    },
    "/api/v1/auth/signup": {
      "post": {
        "summary": "Create an account and its pending profile",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"},"displayName":{"type":"string"},"role":{"type":"string","enum":["student","classRep","professor","headOfDept","admin"]},"mobile":{"type":"string"},"course":{"type":"string"},"semester":{"type":"string"},"rollNo":{"type":"string"}}}}}},
        "responses": { "201": { "description": "signed up; view model plus token" }, "400": { "description": "weak password, invalid email or incomplete form" }, "409": { "description": "duplicate account" } }
      }
    },
    "/api/v1/auth/signin": {
      "post": { "summary": "Sign in with email and password", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "200": { "description": "view model plus token" }, "401": { "description": "bad credential" } } }
    },
    "/api/v1/auth/signin/sso": {
      "post": { "summary": "Sign in with a department ID token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"id_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "view model plus token" }, "401": { "description": "invalid token, or email not verified for linking" } } }
    },
    "/api/v1/auth/signout": {
      "post": { "summary": "Sign out", "responses": { "200": { "description": "signed out" }, "401": { "description": "no session credential" } } }
    },
    "/api/v1/profile/complete": {
      "post": { "summary": "Create the missing profile of the signed-in account", "responses": { "201": { "description": "profile created" } } }
    },
    "/api/v1/posts/{category}": {
      "post": {
        "summary": "Publish an announcement, event or achievement",
        "parameters": [ { "name": "category", "in": "path", "required": true, "schema": { "type": "string", "enum": ["announcements","events","achievements"] } } ],
        "responses": { "201": { "description": "created" }, "403": { "description": "role cannot post" } }
      }
    },
    "/api/v1/chat/messages": {
      "post": { "summary": "Send a chat message", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"text":{"type":"string"}}}}}}, "responses": { "201": { "description": "sent" } } }
    },
    "/api/v1/attachments": {
      "post": { "summary": "Upload an achievement image (multipart field 'file')", "responses": { "201": { "description": "object key and portal path for imageUrl" } } }
    },
    "/api/v1/attachments/{key}": {
      "get": {
        "summary": "Download a stored attachment",
        "parameters": [ { "name": "key", "in": "path", "required": true, "schema": { "type": "string" } } ],
        "responses": { "200": { "description": "file bytes" }, "401": { "description": "no session credential" }, "404": { "description": "no such attachment" } }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready or not configured" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
