package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/dto"
)

// Client is a thin wrapper over the hub's HTTP API carrying the JWT issued
// at login.
type Client struct {
	BaseURL string
	Token   string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) do(method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) Login(username, password string) error {
	var resp dto.LoginResponse
	err := c.do(http.MethodPost, "/login", dto.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return err
	}
	c.Token = resp.Token
	return nil
}

func (c *Client) ListAgents() ([]dto.AgentSummary, error) {
	var agents []dto.AgentSummary
	err := c.do(http.MethodGet, "/api/agents", nil, &agents)
	return agents, err
}

func (c *Client) SetRelay(agentID string, relayID int, state string) (dto.RelayStateResponse, error) {
	var resp dto.RelayStateResponse
	path := fmt.Sprintf("/api/agents/%s/relays/%d/state", agentID, relayID)
	err := c.do(http.MethodPost, path, dto.RelayStateRequest{State: state}, &resp)
	return resp, err
}

func (c *Client) ListCommands(agentID string) ([]dto.CommandEntry, error) {
	var entries []dto.CommandEntry
	err := c.do(http.MethodGet, fmt.Sprintf("/api/agents/%s/commands", agentID), nil, &entries)
	return entries, err
}
