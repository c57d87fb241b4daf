package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/matchahq/matcha-backend/internal/requestdata"
	"github.com/matchahq/matcha-backend/internal/services"
	"github.com/matchahq/matcha-backend/internal/types"
)

type ChatHandler struct {
	chatService  services.ChatService
	usageService services.UsageService
}

func NewChatHandler(chatService services.ChatService, usageService services.UsageService) *ChatHandler {
	return &ChatHandler{chatService: chatService, usageService: usageService}
}

const (
	maxMessageLen = 4000
	maxTitleLen   = 200
)

type sendMessageRequest struct {
	Message             string  `json:"message"`
	ConversationID      *string `json:"conversationId"`
	IsSessionEnd        bool    `json:"isSessionEnd"`
	RequestDeepAnalysis bool    `json:"requestDeepAnalysis"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidationError(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		RespondValidationError(c, "message must not be empty")
		return
	}
	if len(req.Message) > maxMessageLen {
		RespondValidationError(c, "message too long")
		return
	}
	input := services.SendMessageInput{
		Message:             req.Message,
		IsSessionEnd:        req.IsSessionEnd,
		RequestDeepAnalysis: req.RequestDeepAnalysis,
	}
	if req.ConversationID != nil && *req.ConversationID != "" {
		id, err := uuid.Parse(*req.ConversationID)
		if err != nil {
			RespondValidationError(c, "conversationId must be a valid UUID")
			return
		}
		input.ConversationID = &id
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), rd.UserID, rd.Tier, input)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *ChatHandler) GetUsage(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	remaining, err := h.usageService.RemainingMessages(c.Request.Context(), rd.UserID, rd.Tier)
	if err != nil {
		RespondError(c, err)
		return
	}
	resp := gin.H{"tier": rd.Tier, "remainingMessages": remaining}
	if rd.Tier != types.TierPro {
		resp["limit"] = services.FreeTierMonthlyMessages
	}
	RespondOK(c, resp)
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidationError(c, "invalid request body")
		return
	}
	if len(req.Title) > maxTitleLen {
		RespondValidationError(c, "title too long")
		return
	}
	conv, err := h.chatService.CreateConversation(c.Request.Context(), rd.UserID, req.Title)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, conv)
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	page, limit := pageParams(c)
	result, err := h.chatService.ListConversations(c.Request.Context(), rd.UserID, page, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	conv, err := h.chatService.GetConversation(c.Request.Context(), rd.UserID, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, conv)
}

type updateConversationRequest struct {
	Title string `json:"title"`
}

func (h *ChatHandler) UpdateConversation(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req updateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidationError(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		RespondValidationError(c, "title must not be empty")
		return
	}
	if len(req.Title) > maxTitleLen {
		RespondValidationError(c, "title too long")
		return
	}
	conv, err := h.chatService.UpdateConversationTitle(c.Request.Context(), rd.UserID, id, req.Title)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, conv)
}

func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.chatService.DeleteConversation(c.Request.Context(), rd.UserID, id); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondValidationError(c, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 50 {
		limit = 20
	}
	return page, limit
}
