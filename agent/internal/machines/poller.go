// Package machines polls the laundromat's third-party washer/dryer
// telemetry endpoint and relays its rows to the hub.
package machines

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/logger"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"
)

const fetchTimeout = 10 * time.Second

// Sender pushes a frame to the hub when the connection is up.
type Sender interface {
	Send(msg protocol.Message) error
}

type Poller struct {
	agentID  string
	url      string
	interval time.Duration
	client   *http.Client
	sender   Sender
}

func NewPoller(agentID, url string, interval time.Duration, sender Sender) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		agentID:  agentID,
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: fetchTimeout},
		sender:   sender,
	}
}

// Run polls until stop closes. Poll failures are logged and retried on the
// next interval; they never tear down the agent.
func (p *Poller) Run(stop <-chan struct{}) {
	if p.url == "" {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			machines, err := p.fetch()
			if err != nil {
				logger.Warnf("machine telemetry poll failed: %v", err)
				continue
			}
			if err := p.sender.Send(protocol.NewMachineStatus(p.agentID, machines)); err != nil {
				logger.Warnf("machine telemetry send failed: %v", err)
			}
		}
	}
}

func (p *Poller) fetch() ([]protocol.Machine, error) {
	resp, err := p.client.Get(p.url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telemetry endpoint status %d", resp.StatusCode)
	}
	var machines []protocol.Machine
	if err := json.NewDecoder(resp.Body).Decode(&machines); err != nil {
		return nil, fmt.Errorf("telemetry decode: %w", err)
	}
	return machines, nil
}
