package cli

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"

	"github.com/raysh454/sightline/internal/logging"
)

// watchEvent is the subset of a monitor event sightctl prints.
type watchEvent struct {
	Type  string    `json:"type"`
	Site  string    `json:"site"`
	JobID string    `json:"job_id"`
	Time  time.Time `json:"time"`
	Error string    `json:"error"`
}

// WatchAction streams /ws/events until interrupted or --count events arrived.
func (s *session) WatchAction(c *cli.Context) error {
	wsURL, err := eventsURL(s.client.BaseURL(), c.String("site"))
	if err != nil {
		return err
	}

	header := http.Header{}
	if pw := c.String("password"); pw != "" {
		token := base64.StdEncoding.EncodeToString([]byte(c.String("user") + ":" + pw))
		header.Set("Authorization", "Basic "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.Duration("timeout")}
	conn, resp, err := dialer.DialContext(c.Context, wsURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("watch: dial %s: HTTP %d", wsURL, resp.StatusCode)
		}
		return fmt.Errorf("watch: dial %s: %w", wsURL, err)
	}
	defer conn.Close()
	s.logger.Debug("watching events", logging.Field{Key: "url", Value: wsURL})

	// Unblock ReadMessage on interrupt.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-c.Context.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	limit := c.Int("count")
	raw := c.Bool("json")
	for seen := 0; limit <= 0 || seen < limit; seen++ {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if c.Context.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		}
		if err := printEvent(c.App.Writer, msg, raw); err != nil {
			return err
		}
	}
	return nil
}

func eventsURL(base, site string) (string, error) {
	if base == "" {
		return "", errors.New("watch: server address required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("watch: parse server address: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("watch: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/events"
	if site != "" {
		u.RawQuery = url.Values{"site": {site}}.Encode()
	}
	return u.String(), nil
}

func printEvent(out io.Writer, msg []byte, raw bool) error {
	if raw {
		_, err := fmt.Fprintln(out, string(msg))
		return err
	}
	var ev watchEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return fmt.Errorf("watch: decode event: %w", err)
	}
	line := fmt.Sprintf("%s  %-16s %s", ev.Time.Local().Format("2006-01-02 15:04:05"), ev.Type, ev.Site)
	if ev.Error != "" {
		line += "  error: " + ev.Error
	}
	_, err := fmt.Fprintln(out, line)
	return err
}
