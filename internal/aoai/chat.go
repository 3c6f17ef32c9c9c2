package aoai

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatMessage struct {
	Role    string     `json:"role"`
	Content []chatPart `json:"content"`
}

type chatRequest struct {
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    *float64          `json:"temperature,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatInvoker sends prompt and images in one chat completions call.
type ChatInvoker struct {
	Client     *Client
	Deployment string

	MaxTokens   int
	Temperature float64
}

// Invoke posts one completion request and returns the first choice's content.
func (c *ChatInvoker) Invoke(ctx context.Context, req Request) (Result, error) {
	inv := Invocation{Mode: ModeSingleShot, State: Dispatched}

	parts := make([]chatPart, 0, 1+len(req.Images))
	parts = append(parts, chatPart{Type: "text", Text: req.Prompt})
	for _, img := range req.Images {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		detail := img.Detail
		if detail == "" {
			detail = "auto"
		}
		parts = append(parts, chatPart{Type: "image_url", ImageURL: &imageURLPart{URL: img.URL, Detail: detail}})
	}

	body := chatRequest{
		Messages:    []chatMessage{{Role: "user", Content: parts}},
		MaxTokens:   firstPositive(req.MaxTokens, c.MaxTokens, 1000),
		Temperature: req.Temperature,
	}
	if body.Temperature == nil {
		t := c.Temperature
		body.Temperature = &t
	}
	if req.JSONMode {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	var resp chatResponse
	path := "/openai/deployments/" + c.Deployment + "/chat/completions"
	if err := c.Client.do(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		inv.State = Failed
		inv.LastError = err.Error()
		return Result{Invocation: inv}, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		inv.State = Failed
		inv.LastError = "empty completion"
		return Result{Invocation: inv}, errors.New("chat completion returned no content")
	}
	inv.State = Completed
	inv.Status = resp.Choices[0].FinishReason
	return Result{Text: resp.Choices[0].Message.Content, Invocation: inv}, nil
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
