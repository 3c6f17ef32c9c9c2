package aoai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const fileCleanupTimeout = 10 * time.Second

type messagePart struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ImageURL  *imageURLPart  `json:"image_url,omitempty"`
	ImageFile *imageFilePart `json:"image_file,omitempty"`
}

type imageFilePart struct {
	FileID string `json:"file_id"`
	Detail string `json:"detail,omitempty"`
}

type threadMessage struct {
	Role    string        `json:"role"`
	Content []messagePart `json:"content"`
}

type messageList struct {
	Data []struct {
		ID      string `json:"id"`
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text *struct {
				Value string `json:"value"`
			} `json:"text,omitempty"`
		} `json:"content"`
	} `json:"data"`
}

// AssistantInvoker runs a prompt through a configured assistant on the thread/run API.
type AssistantInvoker struct {
	Client      *Client
	AssistantID string
	Poller      *Poller
}

// Invoke creates a thread, posts the message, starts a run, polls it to a terminal state and
// returns the newest assistant message.
func (a *AssistantInvoker) Invoke(ctx context.Context, req Request) (Result, error) {
	inv := Invocation{Mode: ModeThreadRun, State: Idle}
	fail := func(err error) (Result, error) {
		inv.LastError = err.Error()
		if !inv.State.Terminal() {
			inv.State = Failed
		}
		return Result{Invocation: inv}, err
	}

	threadID, err := a.CreateThread(ctx)
	if err != nil {
		return fail(err)
	}
	inv.ThreadID = threadID

	content, fileIDs, err := a.messageContent(ctx, req)
	defer a.deleteFiles(ctx, fileIDs)
	if err != nil {
		return fail(err)
	}
	if err := a.Client.do(ctx, http.MethodPost, "/openai/threads/"+threadID+"/messages", nil,
		threadMessage{Role: "user", Content: content}, nil); err != nil {
		return fail(err)
	}

	var run Run
	if err := a.Client.do(ctx, http.MethodPost, "/openai/threads/"+threadID+"/runs", nil,
		map[string]string{"assistant_id": a.AssistantID}, &run); err != nil {
		return fail(err)
	}
	if run.ID == "" {
		return fail(errors.New("run create returned no id"))
	}
	inv.RunID, inv.Status, inv.State = run.ID, run.Status, Dispatched

	poller := a.Poller
	if poller == nil {
		poller = &Poller{}
	}
	final, state, polls, err := poller.Wait(ctx, run, func(ctx context.Context) (Run, error) {
		return a.GetRun(ctx, threadID, run.ID)
	})
	inv.Status, inv.State, inv.Polls = final.Status, state, polls
	if err != nil {
		return fail(err)
	}

	text, err := a.LatestAssistantText(ctx, threadID)
	if err != nil {
		return fail(err)
	}
	return Result{Text: text, Invocation: inv}, nil
}

// CreateThread starts an empty conversation.
func (a *AssistantInvoker) CreateThread(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := a.Client.do(ctx, http.MethodPost, "/openai/threads", nil, map[string]any{}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("thread create returned no id")
	}
	return out.ID, nil
}

// GetRun fetches a run's current status.
func (a *AssistantInvoker) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	var run Run
	err := a.Client.do(ctx, http.MethodGet, "/openai/threads/"+threadID+"/runs/"+runID, nil, nil, &run)
	return run, err
}

// LatestAssistantText returns the text parts of the newest assistant message, joined by newlines.
func (a *AssistantInvoker) LatestAssistantText(ctx context.Context, threadID string) (string, error) {
	var list messageList
	q := url.Values{"order": {"desc"}}
	if err := a.Client.do(ctx, http.MethodGet, "/openai/threads/"+threadID+"/messages", q, nil, &list); err != nil {
		return "", err
	}
	for _, m := range list.Data {
		if m.Role != "assistant" {
			continue
		}
		var parts []string
		for _, c := range m.Content {
			if c.Type == "text" && c.Text != nil {
				parts = append(parts, c.Text.Value)
			}
		}
		if len(parts) == 0 {
			return "", fmt.Errorf("assistant message %s has no text content", m.ID)
		}
		return strings.Join(parts, "\n"), nil
	}
	return "", errors.New("no assistant message in thread")
}

// messageContent builds the user message. Inline images are uploaded as files first since the
// thread API reads images by URL or file id only. The ids of every uploaded file are returned
// even on error so the caller can remove them.
func (a *AssistantInvoker) messageContent(ctx context.Context, req Request) ([]messagePart, []string, error) {
	var ids []string
	parts := make([]messagePart, 0, 1+len(req.Images))
	parts = append(parts, messagePart{Type: "text", Text: req.Prompt})
	for _, img := range req.Images {
		detail := img.Detail
		if detail == "" {
			detail = "auto"
		}
		if !img.Inline() {
			parts = append(parts, messagePart{Type: "image_url", ImageURL: &imageURLPart{URL: img.URL, Detail: detail}})
			continue
		}
		id, err := a.Client.UploadFile(ctx, img.Filename, img.MimeType, img.Bytes)
		if err != nil {
			return nil, ids, fmt.Errorf("upload %s: %w", img.Filename, err)
		}
		ids = append(ids, id)
		parts = append(parts, messagePart{Type: "image_file", ImageFile: &imageFilePart{FileID: id, Detail: detail}})
	}
	return parts, ids, nil
}

// deleteFiles removes uploaded customer photos from the provider. Failures are logged only.
func (a *AssistantInvoker) deleteFiles(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fileCleanupTimeout)
	defer cancel()
	for _, id := range ids {
		if err := a.Client.DeleteFile(ctx, id); err != nil {
			a.Client.log.Warn("file cleanup failed", "file_id", id, "error", err.Error())
		}
	}
}
