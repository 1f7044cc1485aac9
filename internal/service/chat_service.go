package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jagadeepmamidi/sahay-ai/internal/model"
	"github.com/jagadeepmamidi/sahay-ai/internal/repository"
	"github.com/jagadeepmamidi/sahay-ai/pkg/llm"
	"github.com/jagadeepmamidi/sahay-ai/pkg/log"
)

// systemInstructions is the fixed instruction block sent with every
// generation request. The refusal sentence is part of the contract: the
// model must use it verbatim when the context is insufficient.
const systemInstructions = `You are Sahay AI, a helpful assistant specialized in answering questions about the Pradhan Mantri Kisan Samman Nidhi (PM-KISAN) scheme.

INSTRUCTIONS:
- Answer the user's question based ONLY on the provided context from the official PM-KISAN rules document.
- If the information is not available in the context, respond with: "I'm sorry, the official rules document does not provide information on that topic."
- Keep your answers simple, clear, and in plain language that farmers can easily understand.
- Be accurate and cite specific details from the document when available.
- Be helpful and empathetic in your tone.`

// NoResultAnswer is returned without calling the model when retrieval
// finds nothing.
const NoResultAnswer = "I'm sorry, I couldn't find relevant information in the PM-KISAN documents to answer your question."

// ChatService answers user questions from retrieved context.
type ChatService interface {
	// Answer runs the full retrieve-and-generate cycle and returns the
	// answer text plus the retrieved context passages.
	Answer(ctx context.Context, sessionID, query string) (string, []string, error)
	// StreamAnswer does the same but streams the answer chunks to the
	// writer as {"chunk": ...} frames, followed by a completion frame.
	StreamAnswer(ctx context.Context, sessionID, query string, writer llm.MessageWriter) error
}

type chatService struct {
	searchService    SearchService
	llmClient        llm.Client
	conversationRepo repository.ConversationRepository
	interactionRepo  repository.InteractionRepository
	topK             int
}

// NewChatService creates a ChatService.
func NewChatService(
	searchService SearchService,
	llmClient llm.Client,
	conversationRepo repository.ConversationRepository,
	interactionRepo repository.InteractionRepository,
	topK int,
) ChatService {
	return &chatService{
		searchService:    searchService,
		llmClient:        llmClient,
		conversationRepo: conversationRepo,
		interactionRepo:  interactionRepo,
		topK:             topK,
	}
}

func (s *chatService) Answer(ctx context.Context, sessionID, query string) (string, []string, error) {
	contexts, prompt, err := s.prepare(ctx, sessionID, query)
	if err != nil {
		return "", nil, err
	}
	if len(contexts) == 0 {
		return NoResultAnswer, nil, nil
	}

	answer, err := s.llmClient.Generate(ctx, prompt, nil)
	if err != nil {
		return "", nil, err
	}

	s.finish(sessionID, query, contexts, answer)
	return answer, contexts, nil
}

func (s *chatService) StreamAnswer(ctx context.Context, sessionID, query string, writer llm.MessageWriter) error {
	contexts, prompt, err := s.prepare(ctx, sessionID, query)
	if err != nil {
		return err
	}
	if len(contexts) == 0 {
		if err := writeChunk(writer, NoResultAnswer); err != nil {
			return err
		}
		sendCompletion(writer)
		return nil
	}

	builder := &strings.Builder{}
	interceptor := &chunkInterceptor{writer: writer, answer: builder}
	if err := s.llmClient.GenerateStream(ctx, prompt, nil, interceptor); err != nil {
		return err
	}
	sendCompletion(writer)

	s.finish(sessionID, query, contexts, builder.String())
	return nil
}

// prepare retrieves context and builds the prompt. An empty context slice
// with nil error means nothing relevant was found.
func (s *chatService) prepare(ctx context.Context, sessionID, query string) ([]string, string, error) {
	results, err := s.searchService.Search(ctx, query, s.topK)
	if err != nil {
		return nil, "", fmt.Errorf("failed to retrieve context: %w", err)
	}
	if len(results) == 0 {
		return nil, "", nil
	}

	contexts := make([]string, 0, len(results))
	for _, r := range results {
		contexts = append(contexts, r.Passage.Text)
	}
	history := s.conversationRepo.GetHistory(sessionID)
	return contexts, buildPrompt(contexts, history, query), nil
}

// finish records the successful exchange. Persistence failures are logged
// and swallowed; the answer has already been produced.
func (s *chatService) finish(sessionID, query string, contexts []string, answer string) {
	if answer == "" {
		return
	}
	s.conversationRepo.AppendExchange(sessionID, query, answer)
	record := model.InteractionRecord{
		Timestamp:        time.Now(),
		UserQuery:        query,
		RetrievedContext: contexts,
		AgentResponse:    answer,
	}
	if err := s.interactionRepo.Append(record); err != nil {
		log.Errorf("failed to log interaction: %v", err)
	}
}

// buildPrompt assembles the single prompt string sent to the model:
// instructions, retrieved context, recent conversation and the question.
func buildPrompt(contexts []string, history []model.ChatMessage, query string) string {
	var b strings.Builder
	b.WriteString(systemInstructions)
	b.WriteString("\n\nCONTEXT FROM PM-KISAN OFFICIAL DOCUMENT:\n")
	b.WriteString(strings.Join(contexts, "\n\n"))
	if len(history) > 0 {
		b.WriteString("\n\nCONVERSATION SO FAR:\n")
		for _, msg := range history {
			if msg.Role == "assistant" {
				b.WriteString("SAHAY AI: ")
			} else {
				b.WriteString("USER: ")
			}
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n\nUSER QUESTION: ")
	b.WriteString(query)
	b.WriteString("\n\nSAHAY AI RESPONSE:")
	return b.String()
}

// chunkInterceptor forwards each chunk wrapped as {"chunk": ...} while
// capturing the full answer for the interaction log.
type chunkInterceptor struct {
	writer llm.MessageWriter
	answer *strings.Builder
}

func (w *chunkInterceptor) WriteMessage(messageType int, data []byte) error {
	w.answer.Write(data)
	payload, _ := json.Marshal(map[string]string{"chunk": string(data)})
	return w.writer.WriteMessage(messageType, payload)
}

func writeChunk(writer llm.MessageWriter, text string) error {
	payload, _ := json.Marshal(map[string]string{"chunk": text})
	return writer.WriteMessage(websocket.TextMessage, payload)
}

// sendCompletion emits the end-of-answer notification frame.
func sendCompletion(writer llm.MessageWriter) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"timestamp": time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(notif)
	_ = writer.WriteMessage(websocket.TextMessage, b)
}
