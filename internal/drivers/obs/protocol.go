// Package obs binds the hub's OSC address space to OBS Studio over its
// obs-websocket v5 protocol: scene switching, stream/record transport
// control, source visibility toggles, and program-scene/stream/record
// state feedback.
package obs

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// REVISION: obs-v1-websocket-v5
const revision = "obs-v1-websocket-v5"

// Opcodes from the obs-websocket v5 "op" envelope field.
const (
	opHello               = 0
	opIdentify            = 1
	opIdentified          = 2
	opReidentify          = 3
	opEvent               = 5
	opRequest             = 6
	opRequestResponse     = 7
	opRequestBatch        = 8
	opRequestBatchResponse = 9
)

// rpcVersion is the obs-websocket RPC version this client negotiates.
const rpcVersion = 1

// envelope is the outer {"op":N,"d":{...}} frame every message uses.
type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	ObsWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type identifyData struct {
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      string `json:"authentication,omitempty"`
	EventSubscriptions  int    `json:"eventSubscriptions,omitempty"`
}

type identifiedData struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

type requestData struct {
	RequestType string          `json:"requestType"`
	RequestID   string          `json:"requestId"`
	RequestData json.RawMessage `json:"requestData,omitempty"`
}

type requestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

type requestResponseData struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus requestStatus   `json:"requestStatus"`
	ResponseData  json.RawMessage `json:"responseData,omitempty"`
}

type eventData struct {
	EventType   string          `json:"eventType"`
	EventIntent int             `json:"eventIntent"`
	EventData   json.RawMessage `json:"eventData,omitempty"`
}

// computeAuthResponse implements obs-websocket v5's SHA256 challenge
// response: base64(sha256(base64(sha256(password+salt)) + challenge)).
func computeAuthResponse(password, salt, challenge string) string {
	secretHash := sha256.Sum256([]byte(password + salt))
	secret := base64.StdEncoding.EncodeToString(secretHash[:])

	authHash := sha256.Sum256([]byte(secret + challenge))
	return base64.StdEncoding.EncodeToString(authHash[:])
}
