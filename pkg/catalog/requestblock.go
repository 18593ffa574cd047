package catalog

import (
	"context"
	"fmt"

	"github.com/arpith/higate/pkg/higress"
	"github.com/arpith/higate/pkg/registry"
)

// requestBlockPlugin is the only plugin instance this tool may touch.
const requestBlockPlugin = "request-block"

// requestBlockDefinition builds the update_request_block_plugin tool. The
// configuration is validated client-side before anything reaches the
// console; the console accepts malformed rules silently and then blocks
// nothing.
func requestBlockDefinition(client *higress.Client) registry.ToolDefinition {
	return registry.ToolDefinition{
		Name:        "update_request_block_plugin",
		Description: "Update the global request-block plugin; existing configuration keys not provided are preserved",
		Sensitive:   true,
		Parameters: []registry.ToolParameter{
			{Name: "enabled", Type: "boolean", Description: "Whether the plugin is enabled"},
			{Name: "block_urls", Type: "array", Description: "URL substrings to block"},
			{Name: "block_headers", Type: "array", Description: "Header substrings to block"},
			{Name: "block_bodies", Type: "array", Description: "Body substrings to block"},
			{Name: "blocked_code", Type: "integer", Description: "HTTP status code returned for blocked requests"},
			{Name: "blocked_message", Type: "string", Description: "Response body returned for blocked requests"},
			{Name: "case_sensitive", Type: "boolean", Description: "Whether rule matching is case sensitive"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			if err := validateRequestBlockConfig(args); err != nil {
				return nil, err
			}

			var enabled *bool
			if v, ok := args["enabled"].(bool); ok {
				enabled = &v
			}

			return client.UpdatePlugin(ctx, requestBlockPlugin, enabled, fieldsWithout(args, "enabled"))
		},
	}
}

// validateRequestBlockConfig enforces the rules the console does not.
func validateRequestBlockConfig(args map[string]interface{}) error {
	ruleKeys := []string{"block_urls", "block_headers", "block_bodies"}

	hasRule := false
	for _, key := range ruleKeys {
		raw, present := args[key]
		if !present {
			continue
		}

		items, ok := raw.([]interface{})
		if !ok {
			return &registry.ValidationError{
				Tool:     "update_request_block_plugin",
				Problems: []string{fmt.Sprintf("%s must be an array of strings", key)},
			}
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return &registry.ValidationError{
					Tool:     "update_request_block_plugin",
					Problems: []string{fmt.Sprintf("%s entries must be strings", key)},
				}
			}
		}
		if len(items) > 0 {
			hasRule = true
		}
	}

	if !hasRule {
		return &registry.ValidationError{
			Tool:     "update_request_block_plugin",
			Problems: []string{"at least one of block_urls, block_headers or block_bodies must be provided"},
		}
	}

	if raw, present := args["blocked_code"]; present {
		code, ok := toInt(raw)
		if !ok || code < 100 || code > 599 {
			return &registry.ValidationError{
				Tool:     "update_request_block_plugin",
				Problems: []string{"blocked_code must be an HTTP status code"},
			}
		}
	}

	return nil
}

// toInt accepts the numeric shapes JSON decoding produces.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
