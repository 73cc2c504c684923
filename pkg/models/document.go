package models

import (
	"encoding/json"
	"fmt"
)

// Media node types in Atlassian Document Format. Media references point at
// attachments of the source issue and are rejected when copied to a new issue.
var mediaNodeTypes = map[string]bool{
	"mediaSingle": true,
	"mediaGroup":  true,
	"mediaInline": true,
	"media":       true,
}

// IsMediaNode reports whether the ADF node type embeds an attachment.
func IsMediaNode(nodeType string) bool {
	return mediaNodeTypes[nodeType]
}

// Document is an ADF document, the rich text format of v3 descriptions.
type Document struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
	Content []Node `json:"content"`
}

// Node is one ADF node. Content is decoded recursively; every other attribute
// (text, attrs, marks, ...) is kept verbatim in Rest.
type Node struct {
	Type    string
	Content []Node
	Rest    map[string]json.RawMessage
}

// UnmarshalJSON splits the node into type, children and opaque attributes.
func (n *Node) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("adf node is not an object: %w", err)
	}

	node := Node{}
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &node.Type); err != nil {
			return fmt.Errorf("adf node type: %w", err)
		}
		delete(fields, "type")
	}
	if raw, ok := fields["content"]; ok {
		if err := json.Unmarshal(raw, &node.Content); err != nil {
			return err
		}
		delete(fields, "content")
	}
	if len(fields) > 0 {
		node.Rest = fields
	}

	*n = node
	return nil
}

// MarshalJSON reassembles the node. content is only written when the node had children.
func (n Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Rest)+2)
	for k, v := range n.Rest {
		out[k] = v
	}
	out["type"] = n.Type
	if n.Content != nil {
		out["content"] = n.Content
	}
	return json.Marshal(out)
}

// WithoutMedia returns a copy of the document with every media node removed,
// at any depth. The order of the remaining nodes is preserved.
func (d *Document) WithoutMedia() *Document {
	return &Document{
		Type:    d.Type,
		Version: d.Version,
		Content: stripMedia(d.Content),
	}
}

func stripMedia(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}

	kept := make([]Node, 0, len(nodes))
	for _, node := range nodes {
		if IsMediaNode(node.Type) {
			continue
		}
		node.Content = stripMedia(node.Content)
		kept = append(kept, node)
	}
	return kept
}

// BlockTypes lists the types of the top-level content blocks in order.
func (d *Document) BlockTypes() []string {
	types := make([]string, 0, len(d.Content))
	for _, node := range d.Content {
		types = append(types, node.Type)
	}
	return types
}
