package higress

import (
	"context"
	"net/url"
)

// GetPlugin returns the instance configuration of a global plugin.
func (c *Client) GetPlugin(ctx context.Context, name string) (map[string]interface{}, error) {
	body, err := c.Get(ctx, "/v1/global/plugin-instances/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}
	return dataObject(body)
}

// UpdatePlugin merges the provided configuration values into the plugin's
// current configuration and writes the result back. The read-merge-write
// keeps settings the caller did not mention. A non-nil enabled toggles the
// instance.
func (c *Client) UpdatePlugin(ctx context.Context, name string, enabled *bool, configurations map[string]interface{}) (map[string]interface{}, error) {
	current, err := c.GetPlugin(ctx, name)
	if err != nil {
		return nil, err
	}

	config, ok := current["configurations"].(map[string]interface{})
	if !ok || config == nil {
		config = map[string]interface{}{}
	}
	for key, value := range configurations {
		config[key] = value
	}
	current["configurations"] = config
	if enabled != nil {
		current["enabled"] = *enabled
	}

	body, err := c.Put(ctx, "/v1/global/plugin-instances/"+url.PathEscape(name), current)
	if err != nil {
		return nil, err
	}
	return dataObject(body)
}
