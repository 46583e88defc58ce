// Package security holds input hardening helpers. Currently that is a YAML
// parser with resource limits, protecting the config loader from oversized
// or maliciously nested documents.
package security

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLLimits bounds the shape of a parsed YAML document.
type YAMLLimits struct {
	MaxFileSize  int64 // bytes (default 10MB)
	MaxDepth     int   // nesting depth (default 20)
	MaxNodes     int   // total nodes (default 10000)
	MaxKeyLength int   // key bytes (default 1024)
	MaxValueSize int64 // scalar value bytes (default 1MB)
}

// DefaultYAMLLimits returns limits generous enough for any sane config file.
func DefaultYAMLLimits() YAMLLimits {
	return YAMLLimits{
		MaxFileSize:  10 * 1024 * 1024,
		MaxDepth:     20,
		MaxNodes:     10000,
		MaxKeyLength: 1024,
		MaxValueSize: 1024 * 1024,
	}
}

// SafeYAMLParser unmarshals YAML after validating it against its limits.
type SafeYAMLParser struct {
	limits YAMLLimits
}

// NewSafeYAMLParser creates a parser with the given limits.
func NewSafeYAMLParser(limits YAMLLimits) *SafeYAMLParser {
	return &SafeYAMLParser{limits: limits}
}

// Unmarshal validates data against the limits, then unmarshals it into v.
func (p *SafeYAMLParser) Unmarshal(data []byte, v any) error {
	if int64(len(data)) > p.limits.MaxFileSize {
		return fmt.Errorf("yaml input %d bytes exceeds maximum %d", len(data), p.limits.MaxFileSize)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("yaml parse error: %w", err)
	}

	walker := &nodeWalker{limits: p.limits}
	if err := walker.walk(&root, 0); err != nil {
		return err
	}

	return yaml.Unmarshal(data, v)
}

type nodeWalker struct {
	limits YAMLLimits
	nodes  int
}

func (w *nodeWalker) walk(node *yaml.Node, depth int) error {
	if depth > w.limits.MaxDepth {
		return fmt.Errorf("yaml nesting depth %d exceeds maximum %d", depth, w.limits.MaxDepth)
	}
	w.nodes++
	if w.nodes > w.limits.MaxNodes {
		return fmt.Errorf("yaml node count exceeds maximum %d", w.limits.MaxNodes)
	}

	switch node.Kind {
	case yaml.ScalarNode:
		if int64(len(node.Value)) > w.limits.MaxValueSize {
			return fmt.Errorf("yaml value %d bytes exceeds maximum %d", len(node.Value), w.limits.MaxValueSize)
		}
	case yaml.MappingNode:
		// Content alternates key, value.
		for i := 0; i < len(node.Content); i += 2 {
			key := node.Content[i]
			if len(key.Value) > w.limits.MaxKeyLength {
				return fmt.Errorf("yaml key %d bytes exceeds maximum %d", len(key.Value), w.limits.MaxKeyLength)
			}
		}
	}

	for _, child := range node.Content {
		if err := w.walk(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
