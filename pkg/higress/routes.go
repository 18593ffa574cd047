package higress

import (
	"context"
	"fmt"
	"net/url"
)

// routeRequiredFields are the fields a new route must carry.
var routeRequiredFields = []string{"name", "path", "services"}

// ListRoutes returns all routes configured on the console.
func (c *Client) ListRoutes(ctx context.Context) ([]interface{}, error) {
	body, err := c.Get(ctx, "/v1/routes")
	if err != nil {
		return nil, err
	}
	return dataList(body)
}

// GetRoute returns one route by name.
func (c *Client) GetRoute(ctx context.Context, name string) (map[string]interface{}, error) {
	body, err := c.Get(ctx, "/v1/routes/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}
	return dataObject(body)
}

// AddRoute creates a new route. The configuration must contain name, path
// and services.
func (c *Client) AddRoute(ctx context.Context, configurations map[string]interface{}) (map[string]interface{}, error) {
	for _, field := range routeRequiredFields {
		if _, ok := configurations[field]; !ok {
			return nil, fmt.Errorf("route configuration is missing required field %q", field)
		}
	}

	body, err := c.Post(ctx, "/v1/routes", configurations)
	if err != nil {
		return nil, err
	}
	return dataObject(body)
}

// UpdateRoute updates an existing route. Only the provided fields change;
// the current route is fetched first and merged.
func (c *Client) UpdateRoute(ctx context.Context, name string, configurations map[string]interface{}) (map[string]interface{}, error) {
	current, err := c.GetRoute(ctx, name)
	if err != nil {
		return nil, err
	}

	for key, value := range configurations {
		current[key] = value
	}
	// The path segment is authoritative for the route name.
	current["name"] = name

	body, err := c.Put(ctx, "/v1/routes/"+url.PathEscape(name), current)
	if err != nil {
		return nil, err
	}
	return dataObject(body)
}
