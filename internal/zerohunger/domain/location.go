package domain

import "time"

// AgentLocation is the last reported position of an agent.
type AgentLocation struct {
	AgentID   string    `json:"agent_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}
