package api

const eventsDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Event Stream · Pulse</title>
  <style>
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      font-size: 14px;
      line-height: 1.6;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    nav {
      background: #161b22;
      border-bottom: 1px solid #30363d;
      padding: 10px 24px;
      font-size: 13px;
    }
    nav .back { float: right; }
    main { max-width: 860px; margin: 0 auto; padding: 24px; }
    h1 { font-size: 24px; margin-bottom: 4px; }
    h2 { font-size: 18px; margin-top: 32px; border-bottom: 1px solid #21262d; padding-bottom: 6px; }
    code, pre { font-family: "SFMono-Regular", Consolas, Menlo, monospace; font-size: 12.5px; }
    pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; padding: 12px 16px; overflow-x: auto; }
    table { border-collapse: collapse; width: 100%; }
    th, td { text-align: left; border-bottom: 1px solid #21262d; padding: 6px 8px; vertical-align: top; }
    th { color: #8b949e; font-weight: 500; }
  </style>
</head>
<body>

<nav>
  <strong>Pulse</strong> / Event Stream
  <a class="back" href="/docs">REST API Docs</a>
</nav>

<main>
  <h1>Event Stream</h1>
  <p>Session events for operator clients, delivered as Server-Sent Events.</p>

  <h2 id="endpoint">Endpoint</h2>
  <pre><code>GET /events?kinds=surface.*,log</code></pre>
  <p>
    <code>kinds</code> is optional. It takes a comma-separated list of event kinds;
    a trailing <code>*</code> matches a prefix. Omit it to receive everything.
  </p>

  <h2 id="kinds">Event Kinds</h2>
  <table>
    <thead><tr><th>Kind</th><th>Payload</th></tr></thead>
    <tbody>
      <tr><td><code>surface.created</code></td><td>New surface and the active id</td></tr>
      <tr><td><code>surface.updated</code></td><td>Surface whose URL or title changed; <code>changed</code> says which</td></tr>
      <tr><td><code>surface.switched</code></td><td>Surface that became active</td></tr>
      <tr><td><code>surface.closed</code></td><td>Closed surface and the new active id (0 when none)</td></tr>
      <tr><td><code>surface.load_failed</code></td><td>Surface whose opening location failed to load; <code>error</code> says why</td></tr>
      <tr><td><code>agent.state</code></td><td><code>{"from": "...", "to": "..."}</code> state transition</td></tr>
      <tr><td><code>log</code></td><td><code>{"kind": "user|agent|action|error", "text": "...", "at": "..."}</code></td></tr>
      <tr><td><code>snapshot</code></td><td>Metadata of the latest captured frame</td></tr>
      <tr><td><code>snapshot.saved</code></td><td>Metadata of a stored snapshot</td></tr>
      <tr><td><code>capture</code></td><td><code>{"active": true|false}</code></td></tr>
      <tr><td><code>transport.connected</code></td><td>Agent channel is up</td></tr>
      <tr><td><code>transport.disconnected</code></td><td>Agent channel dropped, with the consecutive attempt count</td></tr>
    </tbody>
  </table>

  <h2 id="format">Format</h2>
  <pre><code>id: 42
event: surface.updated
data: {"kind":"surface.updated","surface":{"id":1,"url":"https://example.com/","title":"Example Domain","is_active":true},"changed":"title","active_id":1}</code></pre>
  <p>A <code>: keep-alive</code> comment is sent every 15 seconds.</p>

  <h2 id="notes">Notes</h2>
  <ul>
    <li>Each subscriber has a 256-event buffer. Events for slow clients are dropped.</li>
    <li>The stream has no authentication. Keep the bridge bound to <code>127.0.0.1</code>.</li>
    <li>Operator audio uses a separate WebSocket at <code>/ws/audio</code>.</li>
  </ul>
</main>

</body>
</html>`
