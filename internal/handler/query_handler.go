// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"kb-assist-go/internal/model"
	"kb-assist-go/internal/service"
	"kb-assist-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// QueryHandler 负责处理知识库问答请求。
type QueryHandler struct {
	chatService service.ChatService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(chatService service.ChatService) *QueryHandler {
	return &QueryHandler{chatService: chatService}
}

// Query 处理一次问答请求。
func (h *QueryHandler) Query(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	question := c.Query("question")
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question 参数不能为空"})
		return
	}

	answer, err := h.chatService.Answer(c.Request.Context(), user, question)
	if err != nil {
		if errors.Is(err, service.ErrEmptyCorpus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "知识库为空，请先上传文档"})
			return
		}
		log.Errorf("Query: 回答问题失败, userID: %d, error: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI服务暂时不可用，请稍后重试"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"answer": answer,
		},
	})
}
