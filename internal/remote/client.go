// Package remote talks to the two backends behind the chat client: the chat-completion
// endpoint and the conversation CRUD endpoint. It never touches local caches.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"advising-chat/internal/constant"
	"advising-chat/internal/entity"
	"advising-chat/internal/identity"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Endpoints struct {
	ChatURL string
	CrudURL string
}

type Client struct {
	endpoints Endpoints
	http      *http.Client
	tracer    trace.Tracer
}

func NewClient(endpoints Endpoints, timeout time.Duration) *Client {
	return &Client{
		endpoints: endpoints,
		http: &http.Client{
			Timeout: timeout,
		},
		tracer: otel.Tracer("advising-chat/remote"),
	}
}

type QueryRequest struct {
	Query            string
	ConversationId   string // empty: first message of a new conversation
	GenerateSchedule bool
}

type QueryReply struct {
	Reply          string
	ConversationId string
}

// --- Wire structs ---

type chatRequest struct {
	Id               string `json:"id"`
	Query            string `json:"query"`
	GenerateSchedule bool   `json:"generate_schedule"`
	ConversationId   string `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	Response       string `json:"response"`
	ConversationId string `json:"conversation_id"`
}

type crudRequest struct {
	Action         string `json:"action"`
	UserId         string `json:"userId"`
	Token          string `json:"token"`
	ConversationId string `json:"conversationId,omitempty"`
}

// --- Operations ---

func (c *Client) ListConversations(ctx context.Context, who identity.Principal) (index entity.Index, err error) {
	ctx, span := c.tracer.Start(ctx, "remote.ListConversations")
	defer func() { finish(span, err) }()

	body, err := c.crud(ctx, who, constant.CrudActionGetConversations, "")
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return entity.Index{}, nil
	}
	if trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: conversation list is not an array", ErrMalformedResponse)
	}
	if err := json.Unmarshal(trimmed, &index); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	span.SetAttributes(attribute.Int("conversations.count", len(index)))
	return index, nil
}

func (c *Client) DeleteConversation(ctx context.Context, who identity.Principal, conversationId string) (err error) {
	ctx, span := c.tracer.Start(ctx, "remote.DeleteConversation",
		trace.WithAttributes(attribute.String("conversation.id", conversationId)))
	defer func() { finish(span, err) }()

	body, err := c.crud(ctx, who, constant.CrudActionDeleteConversation, conversationId)
	if err != nil {
		return err
	}
	return checkAck(body)
}

// CreateUser registers the identity with the CRUD backend; called right after sign-in.
func (c *Client) CreateUser(ctx context.Context, who identity.Principal) (err error) {
	ctx, span := c.tracer.Start(ctx, "remote.CreateUser")
	defer func() { finish(span, err) }()

	body, err := c.crud(ctx, who, constant.CrudActionCreateUser, "")
	if err != nil {
		return err
	}
	return checkAck(body)
}

func (c *Client) SendQuery(ctx context.Context, who identity.Principal, q QueryRequest) (reply *QueryReply, err error) {
	ctx, span := c.tracer.Start(ctx, "remote.SendQuery", trace.WithAttributes(
		attribute.Bool("query.generate_schedule", q.GenerateSchedule),
		attribute.Bool("conversation.new", q.ConversationId == ""),
	))
	defer func() { finish(span, err) }()

	if c.endpoints.ChatURL == "" {
		return nil, fmt.Errorf("%w: chat endpoint", ErrRemoteUnavailable)
	}
	userId, token, err := credential(ctx, who)
	if err != nil {
		return nil, err
	}

	status, body, err := c.post(ctx, c.endpoints.ChatURL, token, chatRequest{
		Id:               userId,
		Query:            q.Query,
		GenerateSchedule: q.GenerateSchedule,
		ConversationId:   q.ConversationId,
	})
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, classifyStatus(status, body)
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Response == "" {
		return nil, fmt.Errorf("%w: chatbot API did not return a response", ErrMalformedResponse)
	}
	return &QueryReply{Reply: resp.Response, ConversationId: resp.ConversationId}, nil
}

// --- Helpers ---

func (c *Client) crud(ctx context.Context, who identity.Principal, action, conversationId string) ([]byte, error) {
	if c.endpoints.CrudURL == "" {
		return nil, fmt.Errorf("%w: CRUD endpoint", ErrRemoteUnavailable)
	}
	userId, token, err := credential(ctx, who)
	if err != nil {
		return nil, err
	}

	status, body, err := c.post(ctx, c.endpoints.CrudURL, "", crudRequest{
		Action:         action,
		UserId:         userId,
		Token:          token,
		ConversationId: conversationId,
	})
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, classifyStatus(status, body)
	}
	return body, nil
}

// credential is fetched fresh for every call, never cached here.
func credential(ctx context.Context, who identity.Principal) (string, string, error) {
	userId := who.Identity()
	if userId == "" {
		return "", "", fmt.Errorf("%w: %v", ErrCredential, identity.ErrNoSession)
	}
	token, err := who.Credential(ctx)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrCredential, err)
	}
	if token == "" {
		return "", "", ErrCredential
	}
	return userId, token, nil
}

func (c *Client) post(ctx context.Context, url, bearer string, payload interface{}) (int, []byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("remote request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, bodyBytes, nil
}

func checkAck(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || json.Valid(trimmed) {
		return nil
	}
	return fmt.Errorf("%w: acknowledgement is not JSON", ErrMalformedResponse)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
