package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Beat is polled on connect and on every heartbeat tick. While the topic is
// live it returns the heartbeat event and true; once the topic is finished it
// returns the final event to send and false.
type Beat func() (Event, bool)

// pump writes events and heartbeats for sub until an ended event has been
// written, the topic finishes, or ctx is done.
func pump(ctx context.Context, sub *Subscriber, interval time.Duration, beat Beat, write func(Event) error) error {
	ev, alive := beat()
	if !alive {
		return write(ev)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Send:
			if !ok {
				return nil
			}
			if err := write(ev); err != nil {
				return err
			}
			if ev.Type == TypeEnded {
				return nil
			}
		case <-ticker.C:
			ev, alive := beat()
			if err := write(ev); err != nil {
				return err
			}
			if !alive {
				return nil
			}
		}
	}
}

// ServeSSE streams the events of topic as text/event-stream. Each message is
// "event: <type>" followed by the JSON payload as its data line.
func ServeSSE(c echo.Context, hub *Hub, topic string, interval time.Duration, beat Beat) error {
	sub := hub.Subscribe(topic)
	defer hub.Unsubscribe(sub)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	return pump(c.Request().Context(), sub, interval, beat, func(ev Event) error {
		if err := writeSSE(res, ev); err != nil {
			return err
		}
		res.Flush()
		return nil
	})
}

func writeSSE(w http.ResponseWriter, ev Event) error {
	data := ev.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const wsWriteWait = 10 * time.Second

// ServeWS upgrades the request and sends the events of topic as JSON text
// messages. Inbound messages are discarded; a read error ends the stream.
func ServeWS(c echo.Context, hub *Hub, topic string, interval time.Duration, beat Beat) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	sub := hub.Subscribe(topic)
	defer hub.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = pump(ctx, sub, interval, beat, func(ev Event) error {
		msg, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return ws.WriteMessage(gorillawebsocket.TextMessage, msg)
	})
	if err == nil {
		ws.WriteControl(gorillawebsocket.CloseMessage,
			gorillawebsocket.FormatCloseMessage(gorillawebsocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}
	// The connection has been hijacked; nothing may be written through echo.
	return nil
}
