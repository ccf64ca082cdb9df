package relay

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const keepAliveInterval = 15 * time.Second

// SSEHandler streams broker events as server-sent events. Clients may
// filter with ?kinds=surface.created,log; a trailing "*" matches a prefix
// (?kinds=surface.*).
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		match := kindFilter(r.URL.Query().Get("kinds"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepAlive.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if !match(evt.Kind) {
					continue
				}
				fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Kind, evt.Payload)
				flusher.Flush()
			}
		}
	}
}

func kindFilter(q string) func(string) bool {
	var exact []string
	var prefixes []string
	for _, k := range strings.Split(q, ",") {
		k = strings.TrimSpace(k)
		switch {
		case k == "":
		case strings.HasSuffix(k, "*"):
			prefixes = append(prefixes, strings.TrimSuffix(k, "*"))
		default:
			exact = append(exact, k)
		}
	}
	if len(exact) == 0 && len(prefixes) == 0 {
		return func(string) bool { return true }
	}
	return func(kind string) bool {
		for _, k := range exact {
			if k == kind {
				return true
			}
		}
		for _, p := range prefixes {
			if strings.HasPrefix(kind, p) {
				return true
			}
		}
		return false
	}
}
