// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package glow

import (
	"context"

	gerrors "github.com/soothill/glow-data-logger/pkg/errors"
	"github.com/soothill/glow-data-logger/pkg/logger"
)

// ListResources fetches the account's resource listing, refreshing the token
// first if needed, and re-records the electricity and gas consumption IDs.
// When a classifier appears more than once the last occurrence wins.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, err := c.tokenLocked(ctx)
	if err != nil {
		return nil, err
	}

	resources, err := c.fetchResources(ctx, token)
	if err != nil {
		return nil, err
	}
	c.recordResourcesLocked(resources)
	return resources, nil
}

// ElectricityResourceID returns the recorded electricity consumption resource.
func (c *Client) ElectricityResourceID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.elecResourceID == "" {
		return "", gerrors.NewResourceError("lookup", ClassifierElectricity, "", gerrors.ErrResourceNotFound)
	}
	return c.elecResourceID, nil
}

// GasResourceID returns the recorded gas consumption resource.
func (c *Client) GasResourceID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gasResourceID == "" {
		return "", gerrors.NewResourceError("lookup", ClassifierGas, "", gerrors.ErrResourceNotFound)
	}
	return c.gasResourceID, nil
}

// fetchResources performs the listing round trip with the given token. It
// does not touch the recorded IDs; callers decide whether to record.
func (c *Client) fetchResources(ctx context.Context, token string) ([]Resource, error) {
	data, contentType := c.post(ctx, "resource", c.baseURL+"/resource", token, nil)

	var resources []Resource
	if err := decodeJSON("resource", data, contentType, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// recordResourcesLocked notes the consumption resource IDs from a listing.
// Cost and any other classifiers are ignored. Callers must hold c.mu.
func (c *Client) recordResourcesLocked(resources []Resource) {
	for _, r := range resources {
		switch r.Classifier {
		case ClassifierElectricity:
			c.elecResourceID = r.ResourceID
		case ClassifierGas:
			c.gasResourceID = r.ResourceID
		}
		logger.Debug().
			Str("resource_id", r.ResourceID).
			Str("classifier", r.Classifier).
			Str("name", r.Name).
			Msg("Resource")
	}
}
