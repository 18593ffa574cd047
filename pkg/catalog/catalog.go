// Package catalog wires the Higress console tools into the registry.
package catalog

import (
	"context"
	"fmt"

	"github.com/arpith/higate/pkg/higress"
	"github.com/arpith/higate/pkg/registry"
)

// Build registers the full tool set against a console client and seals
// the registry. Sensitive tools are the ones that mutate console state.
func Build(client *higress.Client) (*registry.Registry, error) {
	reg := registry.New()

	definitions := []registry.ToolDefinition{
		{
			Name:        "list_routes",
			Description: "List all routes configured on the Higress console",
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return client.ListRoutes(ctx)
			},
		},
		{
			Name:        "get_route",
			Description: "Get detailed configuration of a route by name",
			Parameters: []registry.ToolParameter{
				{Name: "name", Type: "string", Description: "Route name", Required: true},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return client.GetRoute(ctx, argString(args, "name"))
			},
		},
		{
			Name:        "add_route",
			Description: "Create a new route on the Higress console",
			Sensitive:   true,
			Parameters: []registry.ToolParameter{
				{Name: "name", Type: "string", Description: "Route name", Required: true},
				{Name: "path", Type: "object", Description: "Path match predicate (matchType, matchValue)", Required: true},
				{Name: "services", Type: "array", Description: "Upstream services (name, port, weight)", Required: true},
				{Name: "domains", Type: "array", Description: "Domains the route applies to"},
				{Name: "methods", Type: "array", Description: "HTTP methods the route matches"},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return client.AddRoute(ctx, args)
			},
		},
		{
			Name:        "update_route",
			Description: "Update an existing route; fields not provided are preserved",
			Sensitive:   true,
			Parameters: []registry.ToolParameter{
				{Name: "name", Type: "string", Description: "Route name", Required: true},
				{Name: "path", Type: "object", Description: "Path match predicate (matchType, matchValue)"},
				{Name: "services", Type: "array", Description: "Upstream services (name, port, weight)"},
				{Name: "domains", Type: "array", Description: "Domains the route applies to"},
				{Name: "methods", Type: "array", Description: "HTTP methods the route matches"},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				name := argString(args, "name")
				return client.UpdateRoute(ctx, name, fieldsWithout(args, "name"))
			},
		},
		{
			Name:        "list_service_sources",
			Description: "List all service sources registered on the Higress console",
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return client.ListServiceSources(ctx)
			},
		},
		{
			Name:        "get_service_source",
			Description: "Get detailed configuration of a service source by name",
			Parameters: []registry.ToolParameter{
				{Name: "name", Type: "string", Description: "Service source name", Required: true},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return client.GetServiceSource(ctx, argString(args, "name"))
			},
		},
		{
			Name:        "add_service_source",
			Description: "Register a new service source (static or DNS) on the Higress console",
			Sensitive:   true,
			Parameters: []registry.ToolParameter{
				{Name: "name", Type: "string", Description: "Service source name", Required: true},
				{Name: "type", Type: "string", Description: "Source type: static or dns", Required: true},
				{Name: "domain", Type: "string", Description: "Service domain or address"},
				{Name: "port", Type: "integer", Description: "Service port"},
				{Name: "protocol", Type: "string", Description: "Service protocol: http or https"},
				{Name: "sni", Type: "string", Description: "SNI to present when protocol is https"},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return client.AddServiceSource(ctx, args)
			},
		},
		{
			Name:        "update_service_source",
			Description: "Update an existing service source; fields not provided are preserved",
			Sensitive:   true,
			Parameters: []registry.ToolParameter{
				{Name: "name", Type: "string", Description: "Service source name", Required: true},
				{Name: "domain", Type: "string", Description: "Service domain or address"},
				{Name: "port", Type: "integer", Description: "Service port"},
				{Name: "protocol", Type: "string", Description: "Service protocol: http or https"},
				{Name: "sni", Type: "string", Description: "SNI to present when protocol is https"},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				name := argString(args, "name")
				return client.UpdateServiceSource(ctx, name, fieldsWithout(args, "name"))
			},
		},
		{
			Name:        "get_plugin",
			Description: "Get the global configuration of a plugin instance by name",
			Parameters: []registry.ToolParameter{
				{Name: "name", Type: "string", Description: "Plugin name", Required: true},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return client.GetPlugin(ctx, argString(args, "name"))
			},
		},
		requestBlockDefinition(client),
	}

	for _, def := range definitions {
		if err := reg.Register(def); err != nil {
			return nil, fmt.Errorf("failed to build tool catalog: %w", err)
		}
	}

	reg.Seal()

	return reg, nil
}

// argString reads a string argument; schema validation runs before
// handlers, so a missing or mistyped value can only mean a catalog bug.
func argString(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

// fieldsWithout copies the arguments minus the given keys.
func fieldsWithout(args map[string]interface{}, keys ...string) map[string]interface{} {
	skip := make(map[string]bool, len(keys))
	for _, k := range keys {
		skip[k] = true
	}
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		if !skip[k] {
			out[k] = v
		}
	}
	return out
}
