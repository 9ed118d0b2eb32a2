package protocol

// WebSocket close codes used by the admission path. 4000-4999 is the range
// reserved for application use.
const (
	// CloseNoToken rejects an upgrade request carrying no identity token.
	CloseNoToken = 4001
	// CloseInvalidToken rejects a token the validator refused.
	CloseInvalidToken = 4002
)
