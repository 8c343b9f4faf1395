package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
	PlayerName      string `json:"player_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	PlayerID        string `json:"player_id"`
	WorldID         string `json:"world_id"`
	TickIntervalMs  int    `json:"tick_interval_ms"`
	CatalogDigest   string `json:"catalog_digest"`
	QuestCount      int    `json:"quest_count"`
}

// STATUS_SYNC (server -> client): authoritative status for one quest.
// Idempotent on the client; unknown quest ids are ignored there.
type StatusSyncMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	QuestID         string `json:"quest_id"`
	Status          string `json:"status"`
}

// REDEEM_REQUEST (client -> server). Readiness is revalidated server-side;
// the client's view of readiness is never trusted.
type RedeemRequestMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	QuestID         string `json:"quest_id"`
}

// SYNC_REQUEST (client -> server): ask for a full snapshot, one STATUS_SYNC
// per catalog quest. Recovery path for a mirror that missed a transition.
type SyncRequestMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// ACK (server -> client): only sent for frames the server refused to route
// (bad version, unknown type, malformed body). A redeem that merely fails
// its readiness check produces no reply at all.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}
