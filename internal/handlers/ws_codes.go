package handlers

// Custom WebSocket close codes used by the session viewer handler.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError     = 3000 // Client connected with an unsupported subprotocol.
	InvalidSessionCodeError = 3001 // Target session code in the WS URL does not exist.
	SessionEndedClose       = 3002 // Session was torn down while the viewer was subscribed.
)
