// Package repl is the interactive judgectl session.
package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/gorilla/websocket"

	"cryptoj/internal/cli/httpclient"
)

// Session holds REPL state.
type Session struct {
	client *httpclient.Client
	rl     *readline.Instance
}

// New creates a Session.
func New(client *httpclient.Client) (*Session, error) {
	rl, err := readline.New("judgectl> ")
	if err != nil {
		return nil, fmt.Errorf("init readline failed: %w", err)
	}
	return &Session{client: client, rl: rl}, nil
}

// Run reads and executes commands until EOF or quit.
func (s *Session) Run(ctx context.Context) {
	defer s.rl.Close()
	for {
		line, err := s.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch line {
		case "exit", "quit":
			s.printLine("bye")
			return
		case "help":
			s.printHelp()
			continue
		}
		if err := s.handleCommand(ctx, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	switch tokens[0] {
	case "status":
		if len(tokens) != 2 {
			return fmt.Errorf("usage: status <subid>")
		}
		subID, err := parseID(tokens[1])
		if err != nil {
			return err
		}
		return s.request(ctx, http.MethodGet, fmt.Sprintf("/api/judge/submissions/%d", subID), nil)
	case "rejudge":
		if len(tokens) != 2 {
			return fmt.Errorf("usage: rejudge <subid>")
		}
		subID, err := parseID(tokens[1])
		if err != nil {
			return err
		}
		return s.request(ctx, http.MethodPost, fmt.Sprintf("/api/judge/submissions/%d/rejudge", subID), nil)
	case "submit":
		return s.handleSubmit(ctx, tokens[1:])
	case "watch":
		return s.handleWatch()
	case "set":
		return s.handleSet(tokens[1:])
	default:
		return fmt.Errorf("unknown command: %s", tokens[0])
	}
}

func (s *Session) handleSubmit(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: submit <expid> <uid> <language> <file>")
	}
	expID, err := parseID(args[0])
	if err != nil {
		return err
	}
	uid, err := parseID(args[1])
	if err != nil {
		return err
	}
	code, err := os.ReadFile(args[3])
	if err != nil {
		return fmt.Errorf("read code file failed: %w", err)
	}
	body, err := json.Marshal(map[string]any{
		"uid":      uid,
		"language": args[2],
		"code":     string(code),
	})
	if err != nil {
		return err
	}
	return s.request(ctx, http.MethodPost, fmt.Sprintf("/api/judge/experiments/%d/submissions", expID), body)
}

// handleWatch streams judge and congrats events until the user presses
// Enter or the connection drops.
func (s *Session) handleWatch() error {
	url := websocketURL(s.client.BaseURL()) + "/api/judge/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("connect event stream failed: %w", err)
	}
	defer conn.Close()
	s.printLine("watching %s (press Enter to stop)", url)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.printLine("%s", prettyJSON(payload))
		}
	}()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_, _ = s.rl.Readline()
	}()

	select {
	case <-done:
		s.printLine("event stream closed")
	case <-stopped:
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return nil
}

func (s *Session) handleSet(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: set base|timeout <value>")
	}
	switch args[0] {
	case "base":
		s.client.SetBaseURL(strings.TrimRight(args[1], "/"))
		s.printLine("base set to %s", args[1])
	case "timeout":
		dur, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	default:
		return fmt.Errorf("unknown set command: %s", args[0])
	}
	return nil
}

func (s *Session) request(ctx context.Context, method, path string, body []byte) error {
	resp, err := s.client.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration)
	if len(resp.Body) > 0 {
		s.printLine("%s", prettyJSON(resp.Body))
	}
	return nil
}

func (s *Session) printHelp() {
	s.printLine("commands:")
	s.printLine("  status <subid>                        show a submission and its verdict")
	s.printLine("  submit <expid> <uid> <language> <file> enqueue a code file for judging")
	s.printLine("  rejudge <subid>                       queue a submission again")
	s.printLine("  watch                                 stream judge events")
	s.printLine("  set base|timeout <value>              adjust the connection")
	s.printLine("  help | exit")
}

func (s *Session) printLine(format string, args ...interface{}) {
	fmt.Fprintf(s.rl.Stdout(), format+"\n", args...)
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %s", value)
	}
	return id, nil
}

func prettyJSON(data []byte) string {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return string(data)
	}
	formatted, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return string(data)
	}
	return string(formatted)
}

func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
