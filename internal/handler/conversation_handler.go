// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"kb-assist-go/internal/model"
	"kb-assist-go/internal/service"
	"kb-assist-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理与对话历史相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GetConversations 处理获取用户对话历史的请求。
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	history, err := h.service.GetHistory(c.Request.Context(), user.ID)
	if err != nil {
		log.Errorf("GetConversations: 获取对话历史失败, userID: %d, error: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to retrieve conversation history",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    history,
	})
}

// ClearConversations 处理清空用户对话历史的请求。
func (h *ConversationHandler) ClearConversations(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	if err := h.service.Clear(c.Request.Context(), user.ID); err != nil {
		log.Errorf("ClearConversations: 清空对话历史失败, userID: %d, error: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to clear conversation history",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
	})
}
