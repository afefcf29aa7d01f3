package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/infrastructure/logging"
	"widgethost/internal/types"
)

const (
	connDeadline  = 10 * time.Second
	statusTimeout = 2 * time.Second
)

// statSocket is swapped out in tests
var statSocket = os.Stat

// ErrHostRunning is returned by Start when another host already answers on the socket
var ErrHostRunning = errors.New("widget host already running")

// Backend is the window registry as seen by the IPC server
type Backend interface {
	TryOpen(req types.OpenRequest)
	StateByWindowLabel(label string) (types.WindowState, bool)
	States() []types.WindowState
	OpenCount() int64
	Len() int
}

// JournalReporter reports the health of the host's open-attempt journal
type JournalReporter interface {
	Status(ctx context.Context) types.JournalStatus
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithJournal adds journal health to GET_STATUS responses
func WithJournal(journal JournalReporter) ServerOption {
	return func(s *Server) {
		s.journal = journal
	}
}

// Server handles IPC requests from clients
type Server struct {
	socketPath string
	sessionID  string
	backend    Backend
	journal    JournalReporter
	logger     logging.Logger
	startTime  time.Time

	listener     net.Listener
	conns        sync.WaitGroup
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server
func NewServer(socketPath string, backend Backend, logger logging.Logger, sessionID string, opts ...ServerOption) *Server {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	s := &Server{
		socketPath: socketPath,
		sessionID:  sessionID,
		backend:    backend,
		logger:     logger,
		startTime:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SocketPath returns the path the server listens on
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections. A stale socket file is removed;
// a live one yields ErrHostRunning.
func (s *Server) Start() error {
	if _, err := statSocket(s.socketPath); err == nil {
		if NewClient(s.socketPath).Ping() == nil {
			return ErrHostRunning
		}
		os.Remove(s.socketPath)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		// another host can bind between the probe above and Listen
		if NewClient(s.socketPath).Ping() == nil {
			return ErrHostRunning
		}
		return hosterrors.NewWithContext("ipc_listen", err, hosterrors.ErrCodeConnection, map[string]string{
			"socket_path": s.socketPath,
		})
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket_path", s.socketPath)

	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			stopping := s.shuttingDown
			s.shutdownMu.Unlock()
			if stopping || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("IPC accept error", "error", err.Error())
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connDeadline))

	reader := bufio.NewReader(conn)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err.Error())
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.writeResponse(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	s.writeResponse(conn, s.handleCommand(req))
}

func (s *Server) writeResponse(conn net.Conn, resp *Response) {
	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err.Error())
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("Failed to send response", "error", err.Error())
	}
}

func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandPing:
		return okResponse(nil)
	case CommandOpen:
		return s.handleOpen(req.Payload)
	case CommandGetState:
		return s.handleGetState(req.Payload)
	case CommandListStates:
		return okResponse(StatesData{States: s.backend.States()})
	case CommandGetStatus:
		return s.handleGetStatus()
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleOpen(payload json.RawMessage) *Response {
	var req types.OpenRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid OPEN payload: %v", err))
	}
	if strings.TrimSpace(req.WindowID) == "" {
		return NewErrorResponse("Invalid OPEN payload: window id is required")
	}

	s.logger.Debug("IPC: Received OPEN command", "window_id", req.WindowID)
	s.backend.TryOpen(req)
	return okResponse(nil)
}

func (s *Server) handleGetState(payload json.RawMessage) *Response {
	var p GetStatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid GET_STATE payload: %v", err))
	}

	state, ok := s.backend.StateByWindowLabel(p.WindowLabel)
	if !ok {
		return okResponse(StateData{Found: false})
	}
	return okResponse(StateData{Found: true, State: &state})
}

func (s *Server) handleGetStatus() *Response {
	status := StatusData{
		PID:           os.Getpid(),
		OpenCount:     s.backend.OpenCount(),
		WindowCount:   s.backend.Len(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		SessionID:     s.sessionID,
	}

	if s.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
		journal := s.journal.Status(ctx)
		cancel()
		status.Journal = &journal
	}
	return okResponse(status)
}

func okResponse(data interface{}) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// Stop closes the listener, waits for open connections and removes the socket
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.conns.Wait()
	os.Remove(s.socketPath)
}
