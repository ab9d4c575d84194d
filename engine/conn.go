package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrEngineExited is returned once the engine's output stream has closed.
var ErrEngineExited = errors.New("engine process exited")

// conn speaks line-oriented UCI over a pair of pipes. One reader goroutine
// feeds stdout lines into a channel so a cancelled search never strands it.
type conn struct {
	w      io.WriteCloser
	lines  chan string
	done   chan struct{}
	stop   chan struct{}
	once   sync.Once
	wmu    sync.Mutex
	logger *zap.Logger
}

func newConn(r io.Reader, w io.WriteCloser, logger *zap.Logger) *conn {
	c := &conn{
		w:      w,
		lines:  make(chan string, 64),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
		logger: logger,
	}
	go c.readLoop(r)
	return c
}

func (c *conn) readLoop(r io.Reader) {
	defer close(c.done)
	reader := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			select {
			case c.lines <- string(trimmed):
			case <-c.stop:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Debug("engine read ended", zap.Error(err))
			}
			return
		}
	}
}

func (c *conn) send(cmd string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.logger.Debug("uci >", zap.String("cmd", cmd))
	if _, err := io.WriteString(c.w, cmd+"\n"); err != nil {
		return fmt.Errorf("uci write %q: %w", cmd, err)
	}
	return nil
}

// next returns the next output line.
func (c *conn) next(ctx context.Context) (string, error) {
	select {
	case line := <-c.lines:
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.done:
		// drain anything buffered before reporting the exit
		select {
		case line := <-c.lines:
			return line, nil
		default:
			return "", ErrEngineExited
		}
	}
}

// waitFor reads until a line starting with prefix arrives. Each skipped line
// is handed to visit when non-nil.
func (c *conn) waitFor(ctx context.Context, prefix string, visit func(string)) (string, error) {
	for {
		line, err := c.next(ctx)
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(line, prefix) {
			return line, nil
		}
		if visit != nil {
			visit(line)
		}
	}
}

func (c *conn) close() error {
	c.once.Do(func() { close(c.stop) })
	return c.w.Close()
}
