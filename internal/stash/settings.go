package stash

import (
	"context"
	"encoding/json"
	"fmt"

	graphql "github.com/hasura/go-graphql-client"
)

const pluginSettingsQuery = `query PluginSettings { configuration { plugins } }`

// GetPluginSettings fetches the saved settings for pluginID. A plugin that
// has never been configured yields an empty map.
func GetPluginSettings(ctx context.Context, client *graphql.Client, pluginID string) (PluginSettings, error) {
	// plugins is a Map scalar keyed by plugin ID, so decode it directly
	raw, err := client.ExecRaw(ctx, pluginSettingsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query plugin configuration: %w", err)
	}

	var data struct {
		Configuration struct {
			Plugins map[string]PluginSettings `json:"plugins"`
		} `json:"configuration"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode plugin configuration: %w", err)
	}

	settings, ok := data.Configuration.Plugins[pluginID]
	if !ok || settings == nil {
		return PluginSettings{}, nil
	}
	return settings, nil
}
