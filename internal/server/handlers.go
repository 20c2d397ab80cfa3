// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, the roster snapshot and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/samber/lo"

	"github.com/Tyrowin/chitchat/internal/registry"
)

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.origins.isAllowed(r) {
		return true
	}

	s.log.Warn("Blocked WebSocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
	return false
}

// WebSocketHandler upgrades GET requests to a WebSocket and hands the new
// client to the router, which starts its pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info("WebSocket upgrade failed", "err", err)
		return
	}

	client := NewClient(conn, s.router, r.RemoteAddr, s.cfg)
	if !s.router.Connect(client) {
		_ = conn.Close()
	}
}

// UsersHandler returns the current roster as JSON, in the same shape as the
// users broadcast.
func (s *Server) UsersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries := lo.Map(s.router.Registry().Snapshot(), func(session registry.Session, _ int) UserEntry {
		return UserEntry{
			Username:     session.Username,
			ConnectionID: session.ConnectionID,
			OnlineStatus: session.Online,
		}
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		s.log.Warn("Error writing roster response", "err", err)
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "chitchat server is running!")
}

// TestPageHandler serves a small HTML client for trying the relay by hand.
func (s *Server) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		s.log.Warn("Error writing HTML response", "err", err)
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>chitchat</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; display: flex; gap: 20px; }
        #users { width: 200px; border-right: 1px solid #ccc; }
        #users li { cursor: pointer; list-style: none; padding: 3px; }
        #users li.offline { color: #999; }
        #users li.active { background-color: #e0f0ff; }
        #messages { border: 1px solid #ccc; height: 300px; width: 400px; padding: 10px; overflow-y: scroll; }
        #typing { height: 1.2em; color: gray; font-style: italic; }
    </style>
</head>
<body>
    <div>
        <input type="text" id="username" placeholder="Username">
        <button onclick="login()">Login</button>
        <ul id="users"></ul>
    </div>
    <div>
        <div id="peer">Pick someone to chat with</div>
        <div id="messages"></div>
        <div id="typing"></div>
        <input type="text" id="text" placeholder="Type a message..." disabled>
        <button id="send" onclick="sendMessage()" disabled>Send</button>
    </div>

    <script>
        let ws = null;
        let me = '';
        let peer = '';
        const usersList = document.getElementById('users');
        const messagesDiv = document.getElementById('messages');
        const typingDiv = document.getElementById('typing');
        const textInput = document.getElementById('text');
        const sendButton = document.getElementById('send');

        function emit(event, data) {
            ws.send(JSON.stringify({event: event, data: data}));
        }

        function addMessage(from, text) {
            const el = document.createElement('div');
            el.textContent = from + ': ' + text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function renderUsers(users) {
            usersList.innerHTML = '';
            users.filter(u => u.username !== me).forEach(u => {
                const li = document.createElement('li');
                li.textContent = u.username + (u.onlineStatus ? '' : ' (offline)');
                li.className = (u.onlineStatus ? '' : 'offline') + (u.username === peer ? ' active' : '');
                li.onclick = () => { peer = u.username; document.getElementById('peer').textContent = 'Chatting with ' + peer; renderUsers(users); };
                usersList.appendChild(li);
            });
        }

        function login() {
            me = document.getElementById('username').value.trim();
            if (!me) { return; }
            ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
            ws.onopen = () => { emit('login', me); textInput.disabled = false; sendButton.disabled = false; };
            ws.onmessage = (event) => {
                const env = JSON.parse(event.data);
                if (env.event === 'users') { renderUsers(env.data); }
                if (env.event === 'receiveMessage') { addMessage(env.data.sender, env.data.text); }
                if (env.event === 'typing') { typingDiv.textContent = env.data.isTyping ? env.data.sender + ' is typing...' : ''; }
            };
            ws.onclose = () => { textInput.disabled = true; sendButton.disabled = true; ws = null; };
        }

        function sendMessage() {
            const text = textInput.value.trim();
            if (!text || !peer || !ws) { return; }
            emit('sendMessage', {sender: me, receiver: peer, text: text});
            emit('typing', {sender: me, receiver: peer, isTyping: false});
            addMessage('You', text);
            textInput.value = '';
        }

        textInput.addEventListener('input', () => {
            if (ws && peer) { emit('typing', {sender: me, receiver: peer, isTyping: textInput.value.length > 0}); }
        });
        textInput.addEventListener('keypress', (e) => { if (e.key === 'Enter') { sendMessage(); } });
    </script>
</body>
</html>`
