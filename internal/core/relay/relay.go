// Package relay turns a streamed chat completion (server-sent events) into plain text deltas.
//
// The parsing core is a pair of pure transition functions, Step and Finish, so any way of
// slicing the upstream bytes into reads produces the same output. Relay drives them over a
// live body.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// ErrTransport wraps read failures of the upstream body.
var ErrTransport = errors.New("upstream stream failed")

type Phase int

const (
	Receiving Phase = iota
	Done
	Errored
)

func (p Phase) String() string {
	switch p {
	case Receiving:
		return "receiving"
	case Done:
		return "done"
	case Errored:
		return "errored"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// State is the relay's position in the stream. The zero value is ready to receive.
type State struct {
	Phase Phase

	buffer  []byte // incomplete trailing line
	partial []byte // incomplete trailing UTF-8 sequence
}

const (
	dataPrefix  = "data: "
	doneMarker  = "[DONE]"
	readBufSize = 4096
)

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Step consumes one read of upstream bytes and returns the new state and the deltas it completed.
// Once the state is terminal further input is ignored. Only the new bytes are scanned for line
// ends; s shares its line buffer with the returned state and must not be stepped again.
func Step(s State, data []byte) (State, []string) {
	if s.Phase != Receiving {
		return s, nil
	}

	raw := make([]byte, 0, len(s.partial)+len(data))
	raw = append(raw, s.partial...)
	raw = append(raw, data...)
	cut := completePrefix(raw)
	s.partial = raw[cut:]
	if len(s.partial) == 0 {
		s.partial = nil
	}

	text := raw[:cut]
	var deltas []string
	for {
		nl := bytes.IndexByte(text, '\n')
		if nl < 0 {
			break
		}
		line := string(text[:nl])
		if len(s.buffer) > 0 {
			line = string(append(s.buffer, text[:nl]...))
			s.buffer = s.buffer[:0]
		}
		text = text[nl+1:]

		delta, done := parseLine(line)
		if done {
			return State{Phase: Done}, deltas
		}
		if delta != "" {
			deltas = append(deltas, delta)
		}
	}
	s.buffer = append(s.buffer, text...)
	return s, deltas
}

// Finish is called when upstream ends without [DONE]: whatever is buffered is treated as a final line.
func Finish(s State) (State, []string) {
	if s.Phase != Receiving {
		return s, nil
	}
	delta, _ := parseLine(string(s.buffer) + string(s.partial))
	var deltas []string
	if delta != "" {
		deltas = []string{delta}
	}
	return State{Phase: Done}, deltas
}

// completePrefix returns the length of the longest prefix of b that does not end inside a rune.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}

// parseLine extracts the delta text of one SSE line. Lines that are not data frames,
// or whose payload does not parse, yield "".
func parseLine(line string) (delta string, done bool) {
	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return "", false
	}
	payload = strings.TrimSpace(payload)
	if payload == doneMarker {
		return "", true
	}

	var chunk completionChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
		return "", false
	}
	return *chunk.Choices[0].Delta.Content, false
}

type flusher interface {
	Flush()
}

// Relay copies the deltas of upstream to out as they arrive, flushing after every write when out
// supports it. upstream is always closed before Relay returns.
//
// It returns nil once the stream is done, ctx.Err() on cancellation, the write error when out fails,
// and an error wrapping ErrTransport when reading upstream fails.
func Relay(ctx context.Context, upstream io.ReadCloser, out io.Writer) error {
	defer upstream.Close()

	f, _ := out.(flusher)
	write := func(deltas []string) error {
		for _, d := range deltas {
			if _, err := io.WriteString(out, d); err != nil {
				return fmt.Errorf("write delta: %w", err)
			}
			if f != nil {
				f.Flush()
			}
		}
		return nil
	}

	var (
		state  State
		deltas []string
		buf    = make([]byte, readBufSize)
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := upstream.Read(buf)
		if n > 0 {
			state, deltas = Step(state, buf[:n])
			if err := write(deltas); err != nil {
				return err
			}
			if state.Phase == Done {
				return nil
			}
		}

		switch {
		case rerr == nil:
		case errors.Is(rerr, io.EOF):
			state, deltas = Finish(state)
			return write(deltas)
		default:
			if err := ctx.Err(); err != nil {
				return err
			}
			state.Phase = Errored
			log.Warn().Err(rerr).Stringer("phase", state.Phase).Msg("relay: upstream read failed")
			return fmt.Errorf("%w: %w", ErrTransport, rerr)
		}
	}
}
