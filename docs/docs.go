// Package docs registers the Swagger document served at /swagger.
// Regenerate with `swag init -g cmd/server/main.go` after changing handler annotations.
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
            "get": {"tags": ["运维"], "summary": "健康检查", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/seller/orders": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["卖家订单"], "summary": "查询卖家订单（只包含本卖家的明细）",
                "parameters": [
                    {"type": "string", "description": "订单状态", "name": "status", "in": "query"},
                    {"type": "integer", "default": 1, "description": "页码", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "每页数量", "name": "page_size", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/seller/orders/{id}/history": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["卖家订单"], "summary": "查询订单状态变更历史",
                "parameters": [{"type": "string", "description": "订单ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/seller/orders/accept": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["卖家订单"], "summary": "接受已通知的订单",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/seller/orders/status": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["卖家订单"], "summary": "更新订单状态",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/seller/notifications": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["卖家通知"], "summary": "分页查询通知（含未读数）",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/seller/commissions/summary": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["佣金"], "summary": "卖家平台佣金汇总",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/referrals/codes": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["推荐"], "summary": "生成推荐码",
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/referrals/validate": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["推荐"], "summary": "校验推荐码是否可用",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/referrals": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["推荐"], "summary": "使用推荐码建立推荐关系",
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/internal/orders": {
            "post": {"security": [{"InternalKey": []}], "tags": ["内部接口"], "summary": "录入新订单并通知卖家",
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/response.Response"}}}}
        }
    },
    "definitions": {
        "response.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "data": {},
                "request_id": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "InternalKey": {"type": "apiKey", "name": "X-Internal-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Market Ledger API",
	Description:      "订单履约、平台佣金与推荐计划账本服务",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
