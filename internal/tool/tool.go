// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tool is the uniform layer between nodes and external research
// services. Every call goes through an Invoker, which applies the tool's
// rate budget, retries transient failures with capped exponential backoff,
// and appends an audit record.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is one external collaborator: a web search API, a forum search, the
// LLM. Requests and responses are JSON so the invoker stays untyped.
type Tool interface {
	Name() string
	Call(ctx context.Context, req json.RawMessage) (json.RawMessage, error)
}

// Client invokes tools by name. *Invoker and *Caller implement it.
type Client interface {
	Invoke(ctx context.Context, name string, req json.RawMessage) (json.RawMessage, error)
}

type funcTool struct {
	name string
	fn   func(context.Context, json.RawMessage) (json.RawMessage, error)
}

func (f funcTool) Name() string { return f.name }

func (f funcTool) Call(ctx context.Context, req json.RawMessage) (json.RawMessage, error) {
	return f.fn(ctx, req)
}

// Func adapts a function to the Tool interface.
func Func(name string, fn func(context.Context, json.RawMessage) (json.RawMessage, error)) Tool {
	return funcTool{name: name, fn: fn}
}

// Typed adapts a typed handler to the Tool interface. Malformed requests
// are permanent failures.
func Typed[Req, Resp any](name string, fn func(context.Context, Req) (Resp, error)) Tool {
	return Func(name, func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var req Req
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, Permanent(fmt.Errorf("malformed %s request: %w", name, err))
			}
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	})
}

// Call invokes a tool with a typed request and decodes a typed response.
func Call[Req, Resp any](ctx context.Context, c Client, name string, req Req) (Resp, error) {
	var zero Resp
	payload, err := json.Marshal(req)
	if err != nil {
		return zero, &Error{Tool: name, Kind: KindPermanent, Err: fmt.Errorf("encoding request: %w", err)}
	}
	raw, err := c.Invoke(ctx, name, payload)
	if err != nil {
		return zero, err
	}
	var resp Resp
	if err := json.Unmarshal(raw, &resp); err != nil {
		return zero, &Error{Tool: name, Kind: KindPermanent, Attempts: 1, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return resp, nil
}
