package repository

import (
	"sync"
	"time"

	"github.com/jagadeepmamidi/sahay-ai/internal/model"
)

// maxHistoryMessages bounds the per-session history handed to the model.
const maxHistoryMessages = 20

// ConversationRepository stores per-session chat history. Sessions are
// ephemeral browser sessions; history lives in process memory and is
// lost on restart.
type ConversationRepository interface {
	GetHistory(sessionID string) []model.ChatMessage
	AppendExchange(sessionID, question, answer string)
	Clear(sessionID string)
}

type memoryConversationRepository struct {
	mu       sync.Mutex
	sessions map[string][]model.ChatMessage
}

// NewConversationRepository creates an in-memory repository.
func NewConversationRepository() ConversationRepository {
	return &memoryConversationRepository{sessions: make(map[string][]model.ChatMessage)}
}

func (r *memoryConversationRepository) GetHistory(sessionID string) []model.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := r.sessions[sessionID]
	out := make([]model.ChatMessage, len(history))
	copy(out, history)
	return out
}

func (r *memoryConversationRepository) AppendExchange(sessionID, question, answer string) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	history := append(r.sessions[sessionID],
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	r.sessions[sessionID] = history
}

func (r *memoryConversationRepository) Clear(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}
