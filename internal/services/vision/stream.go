package vision

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"lumen/internal/artwork"
	"lumen/internal/services"
)

// streamEvent is one partial-content chunk of a streamed completion.
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateStreaming requests a narration bundle as a stream of
// partial-content events terminated by a final complete payload. onDelta is
// invoked once per received chunk with the total bytes accumulated so far;
// it exists purely to drive a progress signal. Partial content is never
// returned to the caller: structured output is only valid once complete.
//
// A timeout (context deadline or network) wraps ErrTimeout so the caller
// can distinguish it from other stream failures, which are eligible for a
// single non-streaming fallback.
func (c *Client) GenerateStreaming(ctx context.Context, imageJPEG []byte, lang string, onDelta func(accumulated int)) (artwork.Bundle, error) {
	var empty artwork.Bundle
	if len(imageJPEG) == 0 {
		return empty, services.Wrap(services.ErrImageProcessing, "vision", "generate stream", "empty image", nil)
	}
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrAPIKeyMissing, "vision", "generate stream", "", nil)
	}

	payload := c.newRequest(generatePrompt(lang), imageJPEG, true)
	resp, err := c.postChat(ctx, payload, "generate stream")
	if err != nil {
		return empty, streamError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return empty, &services.UpstreamError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	content, err := consumeStream(resp.Body, onDelta)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return empty, streamError(err)
	}
	return decodeBundle(content)
}

func consumeStream(body io.Reader, onDelta func(int)) (string, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			break
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Tolerate malformed keep-alive chunks; the final payload decides.
			continue
		}
		if event.Error != nil {
			return "", services.Wrap(services.ErrUpstream, "vision", "generate stream", strings.TrimSpace(event.Error.Message), nil)
		}
		for _, choice := range event.Choices {
			if choice.Delta.Content != "" {
				sb.WriteString(choice.Delta.Content)
			}
		}
		if onDelta != nil {
			onDelta(sb.Len())
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if sb.Len() == 0 {
		return "", services.Wrap(services.ErrInvalidResponse, "vision", "generate stream", "no content received", nil)
	}
	return sb.String(), nil
}

// streamError tags timeout-shaped failures with ErrTimeout; everything else
// passes through for the caller's fallback decision.
func streamError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "vision", "generate stream", "deadline exceeded", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return services.Wrap(services.ErrTimeout, "vision", "generate stream", "network timeout", err)
	default:
		return err
	}
}
