package obs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gorilla/websocket"
)

// fakeOBSServer is a minimal obs-websocket v5 server: it completes the
// Hello/Identify handshake unconditionally (no auth) and echoes back a
// RequestResponse recording whatever request it received, so tests can
// assert on the requestType/requestData the driver actually sent.
type fakeOBSServer struct {
	*httptest.Server
	received chan requestData
	conn     chan *websocket.Conn
}

var upgrader = websocket.Upgrader{}

func newFakeOBSServer() *fakeOBSServer {
	f := &fakeOBSServer{
		received: make(chan requestData, 16),
		conn:     make(chan *websocket.Conn, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", f.handle)
	f.Server = httptest.NewServer(mux)
	return f
}

func (f *fakeOBSServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.conn <- conn

	helloBytes, _ := json.Marshal(helloData{ObsWebSocketVersion: "5.0.0", RPCVersion: rpcVersion})
	conn.WriteJSON(envelope{Op: opHello, D: helloBytes})

	var ident envelope
	if err := conn.ReadJSON(&ident); err != nil {
		return
	}
	identifiedBytes, _ := json.Marshal(identifiedData{NegotiatedRPCVersion: rpcVersion})
	conn.WriteJSON(envelope{Op: opIdentified, D: identifiedBytes})

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Op != opRequest {
			continue
		}
		var req requestData
		if err := json.Unmarshal(env.D, &req); err != nil {
			continue
		}
		f.received <- req

		respBytes, _ := json.Marshal(requestResponseData{
			RequestType:   req.RequestType,
			RequestID:     req.RequestID,
			RequestStatus: requestStatus{Result: true, Code: 100},
		})
		conn.WriteJSON(envelope{Op: opRequestResponse, D: respBytes})
	}
}

func (f *fakeOBSServer) wsURL() string {
	return "ws" + strings.TrimPrefix(f.URL, "http")
}

func (f *fakeOBSServer) sendEvent(eventType string, data any) {
	c := <-f.conn
	f.conn <- c
	dataBytes, _ := json.Marshal(data)
	evBytes, _ := json.Marshal(eventData{EventType: eventType, EventData: dataBytes})
	c.WriteJSON(envelope{Op: opEvent, D: evBytes})
}
