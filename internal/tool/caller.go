// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Caller is an Invoker scoped to one node. It only calls the tools the
// node declared and tags audit records with the node id.
type Caller struct {
	inv     *Invoker
	nodeID  string
	allowed map[string]bool
}

// Scope returns a Caller for nodeID limited to tools.
func (inv *Invoker) Scope(nodeID string, tools []string) *Caller {
	allowed := make(map[string]bool, len(tools))
	for _, t := range tools {
		allowed[t] = true
	}
	return &Caller{inv: inv, nodeID: nodeID, allowed: allowed}
}

// Invoke calls a declared tool. Undeclared tools fail permanently without
// reaching the backend.
func (c *Caller) Invoke(ctx context.Context, name string, req json.RawMessage) (json.RawMessage, error) {
	if !c.allowed[name] {
		err := &Error{Tool: name, Kind: KindPermanent,
			Err: fmt.Errorf("node %s does not declare tool %s", c.nodeID, name)}
		c.inv.audit(Record{Tool: name, NodeID: c.nodeID, StartedAt: c.inv.now()}, err)
		return nil, err
	}
	return c.inv.invoke(ctx, c.nodeID, name, req)
}

// Log returns a copy of the invoker's audit log.
func (c *Caller) Log() []Record {
	return c.inv.Log()
}
