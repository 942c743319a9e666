// Package response は各サービスの成功レスポンスの共通形式を提供する。
//
// 成功時は {"code": 200, "message": "...", "data": ...} の形式で返す。
// エラー時はこれまで通り {"error": "..."} を返す。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body は成功レスポンスの共通形式。
type Body[T any] struct {
	// Code はHTTPステータスコード。
	Code int `json:"code"`
	// Message は処理結果のメッセージ。
	Message string `json:"message"`
	// Data はレスポンスデータ。
	Data T `json:"data"`
}

// OK は200と共通形式のボディを返す。
func OK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Body[any]{Code: http.StatusOK, Message: message, Data: data})
}

// Created は201と共通形式のボディを返す。
func Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Body[any]{Code: http.StatusCreated, Message: message, Data: data})
}

// Error はエラーメッセージを返してリクエストを中断する。
func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
