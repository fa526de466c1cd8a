package livereload

import (
	"net/http"
	"strconv"
)

// clientScript reconnects with backoff and reloads on a reload message or
// when the connection comes back after the server restarted.
const clientScript = `(function () {
  "use strict";
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var url = scheme + location.host + "` + SocketPath + `";
  var delay = 500;
  var reconnecting = false;

  function connect() {
    var socket = new WebSocket(url);
    socket.onopen = function () {
      if (reconnecting) {
        location.reload();
        return;
      }
      delay = 500;
    };
    socket.onmessage = function (event) {
      try {
        if (JSON.parse(event.data).type === "reload") {
          location.reload();
        }
      } catch (e) {}
    };
    socket.onclose = function () {
      reconnecting = true;
      setTimeout(connect, delay);
      delay = Math.min(delay * 2, 5000);
    };
  }

  connect();
})();
`

func serveScript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(clientScript)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(clientScript))
}
