package devserver

import "github.com/conneroisu/assetpack/internal/errors"

// ClientPath is where the live-reload client script is served.
const ClientPath = "/__assetpack/client.js"

// clientScript connects to /ws, reloads on full_reload and shows the overlay
// markup carried by build_error.
const clientScript = `(function () {
  var overlayId = '` + errors.OverlayID + `';
  var reconnect;

  function showOverlay(markup) {
    var old = document.getElementById(overlayId);
    if (old) { old.remove(); }
    if (!markup) { return; }
    var holder = document.createElement('div');
    holder.innerHTML = markup;
    document.body.appendChild(holder.firstElementChild || holder);
  }

  function connect() {
    var protocol = window.location.protocol === 'https:' ? 'wss:' : 'ws:';
    var ws = new WebSocket(protocol + '//' + window.location.host + '/ws');

    ws.onopen = function () {
      clearInterval(reconnect);
      reconnect = null;
    };

    ws.onmessage = function (event) {
      var message = JSON.parse(event.data);
      switch (message.type) {
        case 'full_reload':
          window.location.reload();
          break;
        case 'build_error':
          showOverlay(message.content);
          break;
      }
    };

    ws.onclose = function () {
      if (!reconnect) {
        reconnect = setInterval(connect, 2000);
      }
    };
  }

  connect();
})();
`
