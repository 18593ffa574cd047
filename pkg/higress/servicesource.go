package higress

import (
	"context"
	"fmt"
	"net/url"
)

// serviceSourceRequiredFields are the fields a new service source must carry.
var serviceSourceRequiredFields = []string{"name", "type"}

// ListServiceSources returns all service sources configured on the console.
func (c *Client) ListServiceSources(ctx context.Context) ([]interface{}, error) {
	body, err := c.Get(ctx, "/v1/service-sources")
	if err != nil {
		return nil, err
	}
	return dataList(body)
}

// GetServiceSource returns one service source by name.
func (c *Client) GetServiceSource(ctx context.Context, name string) (map[string]interface{}, error) {
	body, err := c.Get(ctx, "/v1/service-sources/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}
	return dataObject(body)
}

// AddServiceSource creates a new service source. The configuration must
// contain name and type (static or dns).
func (c *Client) AddServiceSource(ctx context.Context, configurations map[string]interface{}) (map[string]interface{}, error) {
	for _, field := range serviceSourceRequiredFields {
		if _, ok := configurations[field]; !ok {
			return nil, fmt.Errorf("service source configuration is missing required field %q", field)
		}
	}

	body, err := c.Post(ctx, "/v1/service-sources", configurations)
	if err != nil {
		return nil, err
	}
	return dataObject(body)
}

// UpdateServiceSource updates an existing service source by merging the
// provided fields into the current configuration.
func (c *Client) UpdateServiceSource(ctx context.Context, name string, configurations map[string]interface{}) (map[string]interface{}, error) {
	current, err := c.GetServiceSource(ctx, name)
	if err != nil {
		return nil, err
	}

	for key, value := range configurations {
		current[key] = value
	}
	current["name"] = name

	body, err := c.Put(ctx, "/v1/service-sources/"+url.PathEscape(name), current)
	if err != nil {
		return nil, err
	}
	return dataObject(body)
}
