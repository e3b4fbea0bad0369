package api

import (
	"net/http"
)

const operatorUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Assembly Engine - Operator UI</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: monospace;
            background: #1a1a2e;
            color: #eee;
            height: 100vh;
            display: flex;
            flex-direction: column;
        }
        header {
            background: #16213e;
            padding: 12px 20px;
            border-bottom: 1px solid #0f3460;
            display: flex;
            justify-content: space-between;
            align-items: center;
        }
        header h1 { font-size: 16px; font-weight: normal; }
        #conn { padding: 4px 10px; border-radius: 4px; font-size: 12px; }
        #conn.connected { background: #1b4332; color: #95d5b2; }
        #conn.disconnected { background: #7f1d1d; color: #fca5a5; }
        #conn.connecting { background: #78350f; color: #fcd34d; }
        .controls, #session {
            background: #16213e;
            padding: 10px 20px;
            border-bottom: 1px solid #0f3460;
            display: flex;
            gap: 10px;
            align-items: center;
            flex-wrap: wrap;
            font-size: 12px;
        }
        #session span { color: #9ca3af; }
        #session b { color: #60a5fa; font-weight: normal; }
        input {
            background: #1a1a2e;
            border: 1px solid #0f3460;
            border-radius: 4px;
            padding: 6px 10px;
            color: #eee;
            font-family: monospace;
            width: 80px;
        }
        button {
            background: #2563eb;
            border: none;
            border-radius: 4px;
            padding: 6px 12px;
            color: #fff;
            font-family: monospace;
            cursor: pointer;
        }
        button:hover { background: #1d4ed8; }
        button.danger { background: #dc2626; }
        #result { padding: 4px 10px; border-radius: 4px; display: none; }
        #result.success { display: inline; background: #1b4332; color: #95d5b2; }
        #result.error { display: inline; background: #7f1d1d; color: #fca5a5; }
        #events { flex: 1; overflow-y: auto; padding: 10px; }
        .event {
            padding: 6px 12px;
            margin-bottom: 4px;
            background: #16213e;
            border-radius: 4px;
            border-left: 3px solid #0f3460;
            font-size: 13px;
            display: flex;
            gap: 12px;
        }
        .event.level-error { border-left-color: #dc2626; background: #1f1515; }
        .event.scope-task { border-left-color: #7c3aed; }
        .event.scope-node { border-left-color: #0891b2; }
        .event.scope-ownership { border-left-color: #d97706; }
        .event.scope-session { border-left-color: #059669; }
        .event.scope-operator { border-left-color: #db2777; }
        .ts { color: #6b7280; font-size: 11px; min-width: 90px; }
        .name { color: #60a5fa; font-weight: bold; min-width: 180px; }
        .fields { color: #9ca3af; }
    </style>
</head>
<body>
    <header>
        <h1>Assembly Engine</h1>
        <span id="conn" class="disconnected">Disconnected</span>
    </header>
    <div id="session">
        <span>task <b id="task">-</b></span>
        <span>phase <b id="phase">-</b></span>
        <span>owned <b id="owned">0</b>/<b id="nodes">0</b></span>
        <span>participant <b id="participant">-</b></span>
    </div>
    <div class="controls">
        <button class="danger" onclick="post('/operator/reset', {})">Reset</button>
        <button onclick="post('/operator/advance', {})">Advance</button>
        <input type="number" id="node" min="0" placeholder="node">
        <button onclick="unlock()">Unlock</button>
        <button onclick="post('/operator/silhouette', {visible: true})">Show silhouette</button>
        <button onclick="post('/operator/silhouette', {visible: false})">Hide silhouette</button>
        <span id="result"></span>
    </div>
    <div id="events"></div>

    <script>
        const eventsDiv = document.getElementById('events');
        const resultEl = document.getElementById('result');
        let reconnectTimer = null;

        function setConn(s) {
            const el = document.getElementById('conn');
            el.className = s;
            el.textContent = s.charAt(0).toUpperCase() + s.slice(1);
        }

        function renderEvent(e) {
            const div = document.createElement('div');
            div.className = 'event level-' + e.level + ' scope-' + e.event.split('.')[0];
            const t = new Date(e.ts).toLocaleTimeString('en-US', { hour12: false });
            div.innerHTML = '<span class="ts"></span><span class="name"></span><span class="fields"></span>';
            div.children[0].textContent = t;
            div.children[1].textContent = e.event;
            div.children[2].textContent = e.fields ? JSON.stringify(e.fields) : (e.msg || '');
            eventsDiv.appendChild(div);
            eventsDiv.scrollTop = eventsDiv.scrollHeight;
            while (eventsDiv.children.length > 500) eventsDiv.removeChild(eventsDiv.firstChild);
        }

        function renderStatus(s) {
            document.getElementById('task').textContent =
                s.completed ? 'done' : (s.task_index + 1) + '/' + s.task_count + (s.task ? ' ' + s.task : '');
            document.getElementById('phase').textContent = s.phase;
            document.getElementById('owned').textContent = s.owned;
            document.getElementById('nodes').textContent = s.nodes;
            document.getElementById('participant').textContent =
                s.participant + (s.authority ? ' (authority)' : '');
        }

        function connect() {
            setConn('connecting');
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            const ws = new WebSocket(proto + '//' + location.host + '/ws/events');
            ws.onopen = function() { setConn('connected'); };
            ws.onmessage = function(msg) {
                const f = JSON.parse(msg.data);
                if (f.type === 'event') renderEvent(f.event);
                else if (f.type === 'status') renderStatus(f.status);
            };
            ws.onclose = function() {
                setConn('disconnected');
                if (!reconnectTimer) {
                    reconnectTimer = setTimeout(function() { reconnectTimer = null; connect(); }, 3000);
                }
            };
            ws.onerror = function() { ws.close(); };
        }

        function showResult(ok, message) {
            resultEl.className = ok ? 'success' : 'error';
            resultEl.textContent = message;
            setTimeout(function() { resultEl.className = ''; resultEl.textContent = ''; }, 5000);
        }

        function post(path, body) {
            fetch(path, {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify(body)
            })
            .then(function(res) { return res.json(); })
            .then(function(data) { showResult(data.ok, data.ok ? 'OK' : (data.error || 'failed')); })
            .catch(function() { showResult(false, 'Network error'); });
        }

        function unlock() {
            const n = parseInt(document.getElementById('node').value, 10);
            if (isNaN(n)) { showResult(false, 'Enter a node index'); return; }
            post('/operator/unlock', { node: n });
        }

        connect();
    </script>
</body>
</html>`

// uiHandler serves the operator page at / and /ui.
func uiHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/ui" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(operatorUIHTML))
}
