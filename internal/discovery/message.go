package discovery

import (
	"encoding/json"
	"fmt"
)

const (
	MessageAnnounce = "announce"
	MessageResponse = "response"
)

// Message is the discovery datagram. Every field rides on the wire so a
// single packet is enough to register the sender as a peer.
type Message struct {
	Username    string `json:"username"`
	IPAddress   string `json:"ip_address"`
	Port        int    `json:"port"`
	IsHost      bool   `json:"is_host"`
	Timestamp   string `json:"timestamp"`
	MessageType string `json:"message_type"`
	Version     int    `json:"version"`
}

func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode discovery message: %w", err)
	}
	return data, nil
}

func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode discovery message: %w", err)
	}
	return m, nil
}
