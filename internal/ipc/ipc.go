// Package ipc is the control socket of a running switcher.
package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chess10kp/lswitch/internal/dispatch"
)

// Command is one control message.
type Command string

const (
	CommandShow        Command = "show"
	CommandHide        Command = "hide"
	CommandToggle      Command = "toggle"
	CommandRefresh     Command = "refresh"
	CommandFullRefresh Command = "full-refresh"
)

var commands = []Command{CommandShow, CommandHide, CommandToggle, CommandRefresh, CommandFullRefresh}

var ErrUnknownCommand = errors.New("unknown command")

// Commands lists every command the server accepts.
func Commands() []Command {
	return append([]Command(nil), commands...)
}

func ParseCommand(s string) (Command, error) {
	s = strings.TrimSpace(s)
	for _, c := range commands {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

const replyOK = "ok"

// Server accepts commands on a unix socket and runs the handler for each on
// the owner goroutine.
type Server struct {
	socketPath string
	dispatcher dispatch.Dispatcher
	handle     func(Command)

	mu       sync.Mutex
	listener net.Listener
	running  bool
	wg       sync.WaitGroup
}

func NewServer(socketPath string, d dispatch.Dispatcher, handle func(Command)) *Server {
	return &Server{
		socketPath: socketPath,
		dispatcher: d,
		handle:     handle,
	}
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("IPC server already running")
	}

	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}

	s.listener = listener
	s.running = true
	log.Printf("[IPC] Listening on %s", s.socketPath)

	s.wg.Add(1)
	go s.acceptConnections(listener)
	return nil
}

func (s *Server) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) acceptConnections(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isRunning() {
				log.Printf("[IPC] Error accepting connection: %v", err)
				continue
			}
			return
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		log.Printf("[IPC] Error reading from connection: %v", err)
		return
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		log.Printf("[IPC] Rejected message %q", strings.TrimSpace(line))
		fmt.Fprintf(conn, "error: %v\n", err)
		return
	}

	log.Printf("[IPC] Received %s", cmd)
	s.dispatcher.Post(func() { s.handle(cmd) })
	fmt.Fprintln(conn, replyOK)
}

// Stop closes the listener, waits for open connections and removes the socket.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	err := s.listener.Close()
	s.mu.Unlock()

	s.wg.Wait()

	if rmErr := os.Remove(s.socketPath); rmErr != nil && !os.IsNotExist(rmErr) {
		err = errors.Join(err, rmErr)
	}
	log.Printf("[IPC] Server stopped")
	return err
}

// Send delivers cmd to the switcher listening on socketPath and waits for its
// acknowledgement.
func Send(socketPath string, cmd Command) error {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to switcher socket: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := fmt.Fprintln(conn, cmd); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && reply == "" {
		return fmt.Errorf("failed to read reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply != replyOK {
		return fmt.Errorf("switcher replied %q", reply)
	}
	return nil
}
