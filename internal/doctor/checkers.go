package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/iphunt/iphunt/internal/cloud"
	"github.com/iphunt/iphunt/internal/config"
)

// ConfigChecker verifies the configuration is complete enough to hunt.
type ConfigChecker struct {
	cfg *config.Config
}

func NewConfigChecker(cfg *config.Config) *ConfigChecker {
	return &ConfigChecker{cfg: cfg}
}

func (c *ConfigChecker) Name() string       { return "Configuration" }
func (c *ConfigChecker) Category() Category { return CategoryConfig }

func (c *ConfigChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	if err := c.cfg.Validate(); err != nil {
		result.Status = StatusError
		result.Message = "Configuration: incomplete"
		result.Details = err.Error()
		return result
	}

	result.Status = StatusOK
	result.Message = "Configuration: complete"
	return result
}

// RangeChecker verifies the configured address ranges parse and are ordered.
type RangeChecker struct {
	cfg *config.Config
}

func NewRangeChecker(cfg *config.Config) *RangeChecker {
	return &RangeChecker{cfg: cfg}
}

func (c *RangeChecker) Name() string       { return "Address ranges" }
func (c *RangeChecker) Category() Category { return CategoryConfig }

func (c *RangeChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	set, err := c.cfg.RangeSet()
	if err != nil {
		result.Status = StatusError
		result.Message = "Address ranges: invalid"
		result.Details = err.Error()
		return result
	}
	if len(set) == 0 {
		result.Status = StatusError
		result.Message = "Address ranges: none configured"
		result.Details = "A hunt with no target ranges can never match"
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Address ranges: %d configured", len(set))
	return result
}

// AuthChecker verifies the control plane is reachable and accepts the token.
type AuthChecker struct {
	api API
}

func NewAuthChecker(api API) *AuthChecker {
	return &AuthChecker{api: api}
}

func (c *AuthChecker) Name() string       { return "API access" }
func (c *AuthChecker) Category() Category { return CategoryCloud }

func (c *AuthChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	networks, err := c.api.ListNetworks(ctx)
	if err != nil {
		var apiErr *cloud.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403) {
			result.Status = StatusError
			result.Message = "API access: token rejected"
			result.Details = "The auth token is missing, expired, or lacks permissions"
			return result
		}
		result.Status = StatusError
		result.Message = "API access: unreachable"
		result.Details = err.Error()
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("API access: authenticated, %d networks visible", len(networks))
	return result
}

// ServerChecker verifies the target instance exists.
type ServerChecker struct {
	api      API
	serverID string
}

func NewServerChecker(api API, serverID string) *ServerChecker {
	return &ServerChecker{api: api, serverID: serverID}
}

func (c *ServerChecker) Name() string       { return "Target instance" }
func (c *ServerChecker) Category() Category { return CategoryCloud }

func (c *ServerChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	if c.serverID == "" {
		result.Status = StatusSkipped
		result.Message = "Target instance: no server id configured"
		return result
	}

	server, err := c.api.GetServer(ctx, c.serverID)
	if err != nil {
		if cloud.IsNotFound(err) {
			result.Status = StatusError
			result.Message = "Target instance: not found"
			result.Details = fmt.Sprintf("No server with id %s is visible to this project", c.serverID)
			return result
		}
		result.Status = StatusError
		result.Message = "Target instance: unable to check"
		result.Details = err.Error()
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Target instance: %s (%s)", server.Name, server.Status)
	return result
}

// NetworkChecker verifies the external network is visible to the project.
type NetworkChecker struct {
	api       API
	networkID string
}

func NewNetworkChecker(api API, networkID string) *NetworkChecker {
	return &NetworkChecker{api: api, networkID: networkID}
}

func (c *NetworkChecker) Name() string       { return "External network" }
func (c *NetworkChecker) Category() Category { return CategoryCloud }

func (c *NetworkChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	if c.networkID == "" {
		result.Status = StatusSkipped
		result.Message = "External network: no network id configured"
		return result
	}

	networks, err := c.api.ListNetworks(ctx)
	if err != nil {
		result.Status = StatusError
		result.Message = "External network: unable to check"
		result.Details = err.Error()
		return result
	}

	for _, n := range networks {
		if n.ID == c.networkID {
			result.Status = StatusOK
			result.Message = fmt.Sprintf("External network: %s", n.Name)
			return result
		}
	}

	result.Status = StatusError
	result.Message = "External network: not visible"
	result.Details = fmt.Sprintf("Network %s is not in the project's network list", c.networkID)
	return result
}

// TelegramChecker reports whether hunt notifications are wired up. Missing
// credentials are a warning, not a failure: the hunt runs fine without them.
type TelegramChecker struct {
	cfg *config.Config
}

func NewTelegramChecker(cfg *config.Config) *TelegramChecker {
	return &TelegramChecker{cfg: cfg}
}

func (c *TelegramChecker) Name() string       { return "Telegram notifications" }
func (c *TelegramChecker) Category() Category { return CategoryNotify }

func (c *TelegramChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	if c.cfg.Telegram.BotToken == "" || c.cfg.Telegram.ChatID == "" {
		result.Status = StatusWarning
		result.Message = "Telegram notifications: not configured"
		result.Details = "Set the bot token and chat id to get hunt results pushed"
		return result
	}

	result.Status = StatusOK
	result.Message = "Telegram notifications: configured"
	return result
}
