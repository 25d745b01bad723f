package gemini

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Stream is a finite, non-restartable sequence of reply text deltas.
//
//	for s.Next() {
//		fmt.Print(s.Delta())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream interface {
	Next() bool
	Delta() string
	Err() error
	Close() error
}

// sseStream reads server-sent events from streamGenerateContent?alt=sse.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc

	delta     string
	err       error
	done      bool
	closeOnce sync.Once
}

func newSSEStream(body io.ReadCloser, cancel context.CancelFunc) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &sseStream{body: body, scanner: scanner, cancel: cancel}
}

func (s *sseStream) Next() bool {
	if s.done {
		return false
	}
	s.delta = ""

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk generateResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			s.fail(fmt.Errorf("gemini: decode stream chunk: %w", err))
			return false
		}
		if chunk.Error != nil {
			s.fail(&StatusError{
				StatusCode: chunk.Error.Code,
				Status:     chunk.Error.Status,
				Message:    chunk.Error.Message,
				Body:       data,
			})
			return false
		}

		if text := chunk.text(); text != "" {
			s.delta = text
			return true
		}
	}

	if err := s.scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		s.fail(fmt.Errorf("gemini: stream read: %w", err))
		return false
	}
	s.done = true
	return false
}

func (s *sseStream) Delta() string {
	return s.delta
}

func (s *sseStream) Err() error {
	return s.err
}

func (s *sseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.done = true
		s.cancel()
		err = s.body.Close()
	})
	return err
}

func (s *sseStream) fail(err error) {
	s.err = err
	s.done = true
}
