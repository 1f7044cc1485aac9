// Package handler contains the HTTP controllers.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jagadeepmamidi/sahay-ai/internal/domain"
	"github.com/jagadeepmamidi/sahay-ai/internal/service"
	"github.com/jagadeepmamidi/sahay-ai/pkg/log"
)

// fallbackMessage is shown to the user when a query fails for any reason.
// Query-time failures never crash the serving process.
const fallbackMessage = "I apologize, but I ran into a problem while processing your question. Please try again in a moment."

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the widget is served from the same process
	},
}

// ChatHandler serves the JSON and WebSocket chat endpoints.
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatRequest is the request body of the JSON chat endpoint.
type ChatRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
}

// Chat answers a single question in one round trip.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "invalid request payload: query must not be empty",
		})
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	answer, contexts, err := h.chatService.Answer(c.Request.Context(), sessionID, req.Query)
	if err != nil {
		log.Errorf("chat query failed: %v", err)
		c.JSON(http.StatusOK, gin.H{
			"code":    http.StatusOK,
			"message": "degraded",
			"data": gin.H{
				"answer":     fallbackMessage,
				"session_id": sessionID,
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"answer":     answer,
			"context":    contexts,
			"session_id": sessionID,
		},
	})
}

// wsQuery is an incoming WebSocket frame.
type wsQuery struct {
	Query string `json:"query"`
}

// HandleWS upgrades the connection and answers queries over it, one at a
// time, streaming chunks as they are generated.
func (h *ChatHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log.Infof("websocket session established: %s", sessionID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Debugf("websocket session %s closed: %v", sessionID, err)
			return
		}

		query := string(message)
		if len(message) > 0 && message[0] == '{' {
			var q wsQuery
			if err := json.Unmarshal(message, &q); err == nil && q.Query != "" {
				query = q.Query
			}
		}

		err = h.chatService.StreamAnswer(c.Request.Context(), sessionID, query, conn)
		if err != nil {
			log.Errorf("streaming answer failed: %v", err)
			h.writeFailure(conn, err)
		}
	}
}

// writeFailure sends the user-facing fallback followed by a completion
// frame, mirroring the frames of a successful stream.
func (h *ChatHandler) writeFailure(conn *websocket.Conn, err error) {
	msg := fallbackMessage
	if errors.Is(err, domain.ErrIndexNotFound) {
		msg = "The knowledge base is not ready yet. Please try again later."
	}
	payload, _ := json.Marshal(gin.H{"error": msg})
	_ = conn.WriteMessage(websocket.TextMessage, payload)

	completion, _ := json.Marshal(gin.H{"type": "completion", "status": "failed"})
	_ = conn.WriteMessage(websocket.TextMessage, completion)
}
