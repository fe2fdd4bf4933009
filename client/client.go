// Package client is the HTTP command client for the control plane. It
// drives the command state machine by observing its own requests and
// responses, and degrades to local simulated previews when the gateway is
// unreachable.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/site-control-plane/client/command"
	"github.com/upb/site-control-plane/services/session"
)

// Sentinel errors for gated commands
var (
	// ErrConfirmationRequired means the confirmation phrase has not been
	// typed (or a near miss was typed) for a high-severity action
	ErrConfirmationRequired = errors.New("confirmation phrase required")

	// ErrOffline means the machine is latched OFFLINE and a high-severity
	// action cannot proceed
	ErrOffline = errors.New("client is offline")
)

// Client talks to the command gateway on behalf of one operator.
// Not safe for concurrent use; the command loop is single-threaded.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	machine *command.Machine
	logger  *zap.Logger
}

// New creates a client for the gateway at baseURL authenticating with the
// owner token
func New(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		machine: command.New(""),
		logger:  logger,
	}
}

// Machine exposes the state machine for inspection
func (c *Client) Machine() *command.Machine {
	return c.machine
}

// FetchCapabilities loads the manifest and adopts the server's confirmation
// phrase
func (c *Client) FetchCapabilities(ctx context.Context) (*session.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/capabilities", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.machine.ObserveTransportError(err)
		return nil, fmt.Errorf("failed to fetch capabilities: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("capabilities request failed with status %d", resp.StatusCode)
	}

	var manifest session.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("failed to decode capabilities: %w", err)
	}

	c.machine.SetPhrase(manifest.ConfirmationPhrase)
	return &manifest, nil
}

// Confirm feeds the typed confirmation phrase into the machine
func (c *Client) Confirm(input string) bool {
	return c.machine.Confirm(input)
}

// Execute sends one command through the gateway. High-severity actions are
// gated on the confirmation phrase and blocked while offline; transport
// failures latch the machine OFFLINE and, for plan-class actions, return a
// locally simulated preview instead of an error. While offline, non-gated
// commands still go out to the gateway, so the first response that comes
// back clears the latch.
func (c *Client) Execute(ctx context.Context, action string, params map[string]interface{}) (map[string]interface{}, error) {
	if session.RequiresConfirmation(action) && !c.machine.GuardApply() {
		if c.machine.State() == command.StateOffline {
			return nil, ErrOffline
		}
		return nil, ErrConfirmationRequired
	}

	c.machine.ObserveRequest(action)

	body, err := json.Marshal(map[string]interface{}{
		"action": action,
		"params": params,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.machine.ObserveTransportError(err)
		c.logger.Warn("gateway unreachable, entering degraded mode",
			zap.String("action", action),
			zap.Error(err))
		return c.simulate(action)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.machine.ObserveFailure(action, resp.StatusCode)
		return nil, fmt.Errorf("%s failed with status %d", action, resp.StatusCode)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		c.machine.ObserveFailure(action, resp.StatusCode)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.machine.ObserveSuccess(action)
	return response, nil
}

// simulate produces a degraded local preview for plan-class actions. Other
// actions cannot be simulated and surface the offline condition instead.
func (c *Client) simulate(action string) (map[string]interface{}, error) {
	switch action {
	case session.ActionPlan, session.ActionPreview:
		return map[string]interface{}{
			"ok":        true,
			"simulated": true,
			"action":    action,
		}, nil
	}
	return nil, ErrOffline
}
