package aicontent

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const streamModelName = "deepscholar-summary-rag"

// The wire format follows the OpenAI chat.completion.chunk shape so
// existing front-end SSE consumers work unchanged.

type chatChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

var stopReason = "stop"

// SSEWriter emits chat.completion.chunk frames over a gin response.
type SSEWriter struct {
	c      *gin.Context
	respID string
	model  string
}

func NewSSEWriter(c *gin.Context, responseID, model string) *SSEWriter {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	return &SSEWriter{c: c, respID: responseID, model: model}
}

func (w *SSEWriter) send(chunk chatChunk) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(w.c.Writer, "data: %s\n\n", data)
	w.c.Writer.Flush()
}

func (w *SSEWriter) chunk(delta chunkDelta, finish *string) chatChunk {
	return chatChunk{
		ID:      "chatcmpl-" + w.respID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   w.model,
		Choices: []chunkChoice{{Delta: delta, FinishReason: finish}},
	}
}

// SendRole opens the stream with an assistant role delta.
func (w *SSEWriter) SendRole() {
	w.send(w.chunk(chunkDelta{Role: "assistant"}, nil))
}

func (w *SSEWriter) SendContent(delta string) {
	w.send(w.chunk(chunkDelta{Content: delta}, nil))
}

// SendStop emits a final content delta carrying the stop reason.
func (w *SSEWriter) SendStop(delta string) {
	w.send(w.chunk(chunkDelta{Content: delta}, &stopReason))
}

// SendDone terminates the stream.
func (w *SSEWriter) SendDone() {
	fmt.Fprint(w.c.Writer, "data: [DONE]\n\n")
	w.c.Writer.Flush()
}

// Replay streams already-generated text as if it were being produced
// live: the text is cut into a handful of chunks with a short random
// pause between them.
func (w *SSEWriter) Replay(content string) {
	w.SendRole()
	for i, piece := range splitForReplay(content, 5) {
		if i > 0 {
			time.Sleep(time.Duration(100+rand.Intn(100)) * time.Millisecond)
		}
		w.SendContent(piece)
	}
	w.SendDone()
}

func splitForReplay(content string, n int) []string {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}
	size := len(runes) / n
	if size < 1 {
		size = 1
	}
	var pieces []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}
