package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thailaw-council/internal/council"
	"thailaw-council/internal/storage"
	"thailaw-council/pkg/logger"
)

// chatHandler is the main WordPress integration endpoint.
// POST /api/chat - Retrieves legal context, runs the 3-stage council, and
// returns the synthesized answer with source citations.
func (s *Server) chatHandler(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
		return
	}

	sessionID, err := s.ensureConversation(req.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to prepare session: %v", err)})
		return
	}

	result, err := s.pipeline.Run(c.Request.Context(), message, nil)
	if err != nil {
		logger.Error("council run failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Unable to produce an answer at this time",
			"code":  errorCode(err),
		})
		return
	}

	if err := s.store.AppendTurn(sessionID, storage.TurnFromResult(message, result)); err != nil {
		logger.Error("failed to persist turn", zap.String("session_id", sessionID), zap.Error(err))
	}

	c.JSON(http.StatusOK, chatResponseFrom(result, sessionID))
}

// chatStreamHandler is the SSE variant of the chat endpoint. Status events
// are emitted as each stage completes so the widget can show progress; the
// final event carries the same payload as the synchronous endpoint.
// POST /api/chat/stream
func (s *Server) chatStreamHandler(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
		return
	}

	sessionID, err := s.ensureConversation(req.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to prepare session: %v", err)})
		return
	}

	setSSEHeaders(c)

	result, err := s.pipeline.Run(c.Request.Context(), message, func(e council.Event) {
		switch e.Type {
		case "rag_start":
			sendSSEEvent(c, gin.H{"type": "status", "message": "Retrieving legal documents..."})
		case "stage1_start":
			sendSSEEvent(c, gin.H{"type": "status", "message": "Consulting legal experts..."})
		case "stage1_complete":
			count := 0
			if stage1, ok := e.Data.([]council.Stage1Response); ok {
				count = len(stage1)
			}
			sendSSEEvent(c, gin.H{"type": "stage1_complete", "count": count})
		case "stage2_start":
			sendSSEEvent(c, gin.H{"type": "status", "message": "Evaluating responses..."})
		case "stage2_complete":
			sendSSEEvent(c, gin.H{"type": "stage2_complete"})
		case "stage3_start":
			sendSSEEvent(c, gin.H{"type": "status", "message": "Synthesizing final answer..."})
		}
	})
	if err != nil {
		logger.Error("council run failed", zap.String("session_id", sessionID), zap.Error(err))
		sendSSEError(c, "Unable to produce an answer at this time")
		return
	}

	if err := s.store.AppendTurn(sessionID, storage.TurnFromResult(message, result)); err != nil {
		logger.Error("failed to persist turn", zap.String("session_id", sessionID), zap.Error(err))
	}

	sendSSEEvent(c, gin.H{"type": "complete", "data": chatResponseFrom(result, sessionID)})
}

// ensureConversation returns a usable conversation id, creating the record
// if the caller's session id is new or absent.
func (s *Server) ensureConversation(sessionID string) (string, error) {
	if sessionID != "" {
		existing, err := s.store.Get(sessionID)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return sessionID, nil
		}
	}

	conversation, err := s.store.Create(sessionID)
	if err != nil {
		return "", err
	}
	return conversation.ID, nil
}

// listConversationsHandler lists conversation metadata, newest first.
// GET /api/conversations
func (s *Server) listConversationsHandler(c *gin.Context) {
	conversations, err := s.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to list conversations: %v", err)})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// createConversationHandler creates a new empty conversation.
// POST /api/conversations
func (s *Server) createConversationHandler(c *gin.Context) {
	conversation, err := s.store.Create("")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create conversation: %v", err)})
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// getConversationHandler returns a full conversation record.
// GET /api/conversations/:id
func (s *Server) getConversationHandler(c *gin.Context) {
	conversation, err := s.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to get conversation: %v", err)})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// sendMessageHandler runs the council for the council UI and returns all
// stages at once.
// POST /api/conversations/:id/message
func (s *Server) sendMessageHandler(c *gin.Context) {
	conversationID := c.Param("id")

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	conversation, err := s.store.Get(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to get conversation: %v", err)})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	if len(conversation.Turns) == 0 {
		s.generateTitleAsync(conversationID, req.Content)
	}

	result, err := s.pipeline.Run(c.Request.Context(), req.Content, nil)
	if err != nil {
		logger.Error("council run failed", zap.String("conversation_id", conversationID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Unable to produce an answer at this time",
			"code":  errorCode(err),
		})
		return
	}

	if err := s.store.AppendTurn(conversationID, storage.TurnFromResult(req.Content, result)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to save message: %v", err)})
		return
	}

	c.JSON(http.StatusOK, SendMessageResponse{
		Stage1: result.Stage1,
		Stage2: result.Stage2,
		Stage3: result.Stage3,
		Metadata: StageMetadata{
			LabelToModel:      result.LabelToModel,
			AggregateRankings: result.AggregateRankings,
		},
	})
}

// sendMessageStreamHandler streams the council stages to the council UI with
// full per-stage data.
// POST /api/conversations/:id/message/stream
func (s *Server) sendMessageStreamHandler(c *gin.Context) {
	conversationID := c.Param("id")

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	conversation, err := s.store.Get(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to get conversation: %v", err)})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	setSSEHeaders(c)

	var titleChan chan string
	if len(conversation.Turns) == 0 {
		titleChan = make(chan string, 1)
		go func() {
			defer close(titleChan)
			title, err := s.pipeline.GenerateTitle(context.Background(), req.Content)
			if err != nil {
				logger.Warn("failed to generate title", zap.Error(err))
				return
			}
			if err := s.store.UpdateTitle(conversationID, title); err != nil {
				logger.Warn("failed to update title", zap.Error(err))
				return
			}
			titleChan <- title
		}()
	}

	result, err := s.pipeline.Run(c.Request.Context(), req.Content, func(e council.Event) {
		sendSSEEvent(c, e)
	})
	if err != nil {
		logger.Error("council run failed", zap.String("conversation_id", conversationID), zap.Error(err))
		sendSSEError(c, "Unable to produce an answer at this time")
		return
	}

	if titleChan != nil {
		if title, ok := <-titleChan; ok && title != "" {
			sendSSEEvent(c, gin.H{"type": "title_complete", "data": gin.H{"title": title}})
		}
	}

	if err := s.store.AppendTurn(conversationID, storage.TurnFromResult(req.Content, result)); err != nil {
		sendSSEError(c, fmt.Sprintf("Failed to save message: %v", err))
		return
	}

	sendSSEEvent(c, gin.H{"type": "complete"})
}

// generateTitleAsync generates and stores a conversation title in the
// background, falling back to the default on failure.
func (s *Server) generateTitleAsync(conversationID, content string) {
	go func() {
		title, err := s.pipeline.GenerateTitle(context.Background(), content)
		if err != nil {
			logger.Warn("failed to generate title", zap.Error(err))
			return
		}
		if err := s.store.UpdateTitle(conversationID, title); err != nil {
			logger.Warn("failed to update title", zap.Error(err))
		}
	}()
}
