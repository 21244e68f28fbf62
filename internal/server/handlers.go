package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Tyrowin/chatline/internal/config"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// WebSocketHandler upgrades GET requests from allowed origins and hands the
// new client to the hub, which starts its pumps.
func WebSocketHandler(hub *Hub, cfg config.Config) http.HandlerFunc {
	policy := newOriginPolicy(cfg.AllowedOrigins, hub.log)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     policy.checkOrigin,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "err", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr, cfg)
		select {
		case hub.register <- client:
		case <-hub.ctx.Done():
			_ = conn.Close()
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chatline server is running!")
}

// PresenceHandler returns the current online list as JSON.
func PresenceHandler(hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, hub, map[string]any{"online": hub.Engine().Presence()})
	}
}

// MessagesHandler returns the recent message window as JSON, oldest first.
// The optional limit query parameter caps the number of messages; without it
// the whole window is returned.
func MessagesHandler(hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		limit := hub.Engine().HistorySize()
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
				return
			}
			limit = n
		}
		writeJSON(w, hub, map[string]any{"messages": hub.Engine().Recent(limit)})
	}
}

func writeJSON(w http.ResponseWriter, hub *Hub, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		hub.log.Warn("Error writing JSON response", "err", err)
	}
}

// TestPageHandler serves an HTML page for trying the websocket protocol by hand.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Chatline WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
            font-size: 12px;
        }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
        fieldset { margin: 8px 0; }
    </style>
</head>
<body>
    <h1>Chatline WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <fieldset>
        <input type="text" id="identity" placeholder="identity id">
        <input type="text" id="name" placeholder="display name">
        <input type="text" id="room" placeholder="room (optional)">
        <button onclick="toggleConnection()" id="connectButton">Connect</button>
    </fieldset>

    <fieldset>
        <input type="text" id="body" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </fieldset>

    <fieldset>
        <input type="text" id="peer" placeholder="peer identity id">
        <button onclick="frame('call_initiate', {target: val('peer')})">Call</button>
        <button onclick="frame('call_accept')">Accept</button>
        <button onclick="frame('call_reject')">Reject</button>
        <button onclick="frame('call_hangup')">Hang up</button>
    </fieldset>

    <div id="log"></div>

    <script>
        let ws = null;
        let typing = false;
        const logDiv = document.getElementById('log');
        const statusDiv = document.getElementById('status');
        const connectButton = document.getElementById('connectButton');
        const bodyInput = document.getElementById('body');

        function val(id) { return document.getElementById(id).value.trim(); }

        function addLine(text, color) {
            const line = document.createElement('div');
            line.style.color = color || 'gray';
            line.textContent = text;
            logDiv.appendChild(line);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function frame(type, payload) {
            if (!ws || ws.readyState !== WebSocket.OPEN) { return; }
            const data = JSON.stringify({type: type, payload: payload || {}});
            ws.send(data);
            addLine('> ' + data, 'blue');
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() {
                updateStatus(true);
                frame('join', {identity: {id: val('identity'), name: val('name')}, room: val('room')});
            };
            ws.onmessage = function(event) { addLine('< ' + event.data, 'green'); };
            ws.onclose = function() { addLine('Connection closed'); updateStatus(false); ws = null; };
            ws.onerror = function() { addLine('Connection error'); };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) { ws.close(); } else { connect(); }
        }

        function sendMessage() {
            const body = bodyInput.value.trim();
            if (!body) { return; }
            frame('send_message', {body: body, channel: val('room')});
            bodyInput.value = '';
            typing = false;
        }

        bodyInput.addEventListener('input', function() {
            if (!typing && bodyInput.value !== '') { typing = true; frame('typing_start'); }
            if (typing && bodyInput.value === '') { typing = false; frame('typing_stop'); }
        });
        bodyInput.addEventListener('keypress', function(e) { if (e.key === 'Enter') { sendMessage(); } });
    </script>
</body>
</html>`
