package nativemsg

import "encoding/json"

// Message types exchanged with the browser extension.
const (
	TypeNavigation = "navigation"
	TypeDecision   = "decision"
	TypeEngines    = "engines"
	TypeInstalled  = "installed"
	TypeInject     = "inject"
	TypeTabsQuery  = "tabs.query"
	TypeTabsCreate = "tabs.create"
	TypeTabsUpdate = "tabs.update"
	TypeSearch     = "search"
	TypeReply      = "reply"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeError      = "error"
)

// Navigation is a committed navigation reported by the extension.
type Navigation struct {
	Type           string `json:"type"`
	ID             string `json:"id,omitempty"`
	URL            string `json:"url"`
	TabID          int    `json:"tabId"`
	TransitionType string `json:"transitionType"`
}

// Decision answers a Navigation.
type Decision struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Cancel bool   `json:"cancel"`
}

// Engines lists the providers the browser exposes, in host order.
type Engines struct {
	Type    string `json:"type"`
	Engines []struct {
		Name string `json:"name"`
	} `json:"engines"`
}

// Inject asks the extension to run code in a tab.
type Inject struct {
	Type  string `json:"type"`
	TabID int    `json:"tabId"`
	Code  string `json:"code"`
	RunAt string `json:"runAt"`
}

// Request is a host-initiated call that expects a Reply with the same ID.
type Request struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Params any    `json:"params,omitempty"`
}

// Reply answers a Request.
type Reply struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Pong answers a ping.
type Pong struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// Error reports a problem handling an inbound message.
type Error struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}
