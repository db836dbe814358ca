package domain

import "encoding/json"

// SearchCriteria is the funnel's accumulated state, persisted as the
// payload of the newest funnel ConversationEvent.
type SearchCriteria struct {
	Purpose  PropertyPurpose `json:"purpose,omitempty"`
	City     string          `json:"city,omitempty"`
	State    string          `json:"state,omitempty"`
	Type     PropertyType    `json:"type,omitempty"`
	Bedrooms *int            `json:"bedrooms,omitempty"`
	MinPrice *float64        `json:"min_price,omitempty"`
	MaxPrice *float64        `json:"max_price,omitempty"`
}

func (c SearchCriteria) Encode() string {
	b, _ := json.Marshal(c)
	return string(b)
}

func DecodeCriteria(payload string) SearchCriteria {
	var c SearchCriteria
	if payload != "" {
		_ = json.Unmarshal([]byte(payload), &c)
	}
	return c
}
