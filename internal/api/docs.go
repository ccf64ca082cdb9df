package api

// docsHTML renders the OpenAPI reference under a bar that points at the
// routes the OpenAPI document does not describe.
const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Pulse Bridge API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    body { display: flex; flex-direction: column; height: 100vh; margin: 0; background: #0d1117; }
    header {
      display: flex; align-items: baseline; gap: 20px; flex-wrap: wrap;
      padding: 10px 18px; border-bottom: 1px solid #30363d; color: #c9d1d9;
      font: 13px -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
    }
    header strong { font-size: 15px; color: #f0f6fc; }
    header a { color: #58a6ff; text-decoration: none; }
    header code { color: #8b949e; }
    elements-api { flex: 1; min-height: 0; }
  </style>
</head>
<body>
  <header>
    <strong>Pulse</strong>
    <span>Surfaces, navigation, agent actions, snapshots and audio capture for one browser session.</span>
    <a href="/docs/events">Event stream <code>GET /events</code></a>
    <span>Operator audio <code>/ws/audio</code></span>
    <a href="/metrics">Metrics <code>/metrics</code></a>
    <a href="/healthz">Health <code>/healthz</code></a>
  </header>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`
