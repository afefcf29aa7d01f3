package toolkit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Command types sent from the host to a window process
const (
	CommandEval       = "eval"
	CommandToolWindow = "tool-window"
)

// Event types sent from a window process to the host
const (
	EventReady = "ready"
	EventReply = "reply"
	EventError = "error"
)

// maxLineSize bounds one protocol line; injected scripts carry the whole environment
const maxLineSize = 4 * 1024 * 1024

// Command is one JSON line on the window process's stdin
type Command struct {
	Type    string `json:"type"`
	Script  string `json:"script,omitempty"`
	Enabled bool   `json:"enabled,omitempty"`
}

// Event is one JSON line on the window process's stdout
type Event struct {
	Type  string `json:"type"`
	PID   int    `json:"pid,omitempty"`
	Error string `json:"error,omitempty"`
}

// Executor runs commands inside a window process
type Executor interface {
	Eval(script string) error
	SetToolWindow(enabled bool) error
}

// EventWriter serializes events onto a stream; safe for concurrent use
type EventWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewEventWriter creates an EventWriter writing to w
func NewEventWriter(w io.Writer) *EventWriter {
	return &EventWriter{enc: json.NewEncoder(w)}
}

func (w *EventWriter) Write(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(ev)
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return scanner
}

// Serve answers commands read from in until in is closed. Each command gets
// exactly one reply or error event.
func Serve(in io.Reader, events *EventWriter, exec Executor) error {
	scanner := newScanner(in)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			if werr := events.Write(Event{Type: EventError, Error: fmt.Sprintf("invalid command: %v", err)}); werr != nil {
				return werr
			}
			continue
		}

		var err error
		switch cmd.Type {
		case CommandEval:
			err = exec.Eval(cmd.Script)
		case CommandToolWindow:
			err = exec.SetToolWindow(cmd.Enabled)
		default:
			err = fmt.Errorf("unknown command %q", cmd.Type)
		}

		reply := Event{Type: EventReply}
		if err != nil {
			reply = Event{Type: EventError, Error: err.Error()}
		}
		if err := events.Write(reply); err != nil {
			return err
		}
	}

	return scanner.Err()
}
