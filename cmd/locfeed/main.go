// Command locfeed replays recorded device fixes into a running wayfinder
// service over the location ingest websocket. Input is JSON lines, one
// {"lat":..,"lng":..,"accuracy":..} object per line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/location"
)

type reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func main() {
	url := flag.String("url", "ws://localhost:8090/ws/location/ingest", "Ingest websocket URL")
	file := flag.String("file", "-", "JSON lines file of fixes, - for stdin")
	interval := flag.Duration("interval", 2*time.Second, "Delay between fixes")
	device := flag.String("device", "locfeed", "Device name reported to the server")
	loop := flag.Bool("loop", false, "Replay the file forever")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log.Init(*level)
	logger := log.With("component", "locfeed")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fixes, err := readFixes(*file)
	if err != nil {
		logger.Error("read fixes", "error", err)
		os.Exit(1)
	}
	if len(fixes) == 0 {
		logger.Error("no fixes to replay", "file", *file)
		os.Exit(1)
	}

	target := *url
	if !strings.Contains(target, "?") {
		target += "?device=" + *device
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		logger.Error("dial", "url", target, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	logger.Info("replaying", "fixes", len(fixes), "interval", *interval, "loop", *loop)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sent := 0
	for {
		for i, fix := range fixes {
			fix.Timestamp = time.Now()
			if err := send(conn, fix); err != nil {
				logger.Error("send", "index", i, "error", err)
				os.Exit(1)
			}
			sent++
			logger.Debug("fix sent", "index", i, "lat", fix.Lat, "lng", fix.Lng)

			select {
			case <-ctx.Done():
				logger.Info("stopped", "sent", sent)
				closeConn(conn)
				return
			case <-ticker.C:
			}
		}
		if !*loop {
			break
		}
	}

	logger.Info("done", "sent", sent)
	closeConn(conn)
}

func send(conn *websocket.Conn, fix location.Fix) error {
	data, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var r reply
	if err := conn.ReadJSON(&r); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if !r.OK {
		return fmt.Errorf("rejected: %s", r.Error)
	}
	return nil
}

func closeConn(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// readFixes parses one fix per non-empty line and validates each.
func readFixes(path string) ([]location.Fix, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var fixes []location.Fix
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var fix location.Fix
		if err := json.Unmarshal([]byte(text), &fix); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := fix.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fixes = append(fixes, fix)
	}
	return fixes, sc.Err()
}
