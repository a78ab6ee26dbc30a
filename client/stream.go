package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
)

// RAGOptions tunes a retrieval query.
type RAGOptions struct {
	CollectionID string
	Limit        int
}

// RAGResult is the non-streaming answer shape.
type RAGResult struct {
	Results    []Source `json:"results"`
	Completion string   `json:"completion"`
}

// StreamEvent is one typed event from a RAG stream: SourcesEvent,
// TextDeltaEvent, DoneEvent, or ErrorEvent.
type StreamEvent interface {
	isStreamEvent()
}

// SourcesEvent carries the retrieved sources. Emitted exactly once,
// before any text.
type SourcesEvent struct {
	Sources []Source
}

// TextDeltaEvent carries the full completion accumulated so far; each
// event's Text extends the previous one.
type TextDeltaEvent struct {
	Text string
}

// DoneEvent signals the completion closed cleanly.
type DoneEvent struct{}

// ErrorEvent signals the stream ended abnormally.
type ErrorEvent struct {
	Err error
}

func (SourcesEvent) isStreamEvent()   {}
func (TextDeltaEvent) isStreamEvent() {}
func (DoneEvent) isStreamEvent()      {}
func (ErrorEvent) isStreamEvent()     {}

// Completion runs a non-streaming retrieval query. The completion text
// has citation markers normalized like the streaming path.
func (c *Client) Completion(ctx context.Context, query string, opts RAGOptions) (RAGResult, error) {
	var out RAGResult
	if err := c.do(ctx, http.MethodPost, "/rag", ragPayload(query, opts, false), &out); err != nil {
		return RAGResult{}, err
	}
	out.Completion = NormalizeCitations(out.Completion)
	return out, nil
}

// RAG opens a streaming retrieval query. A non-200 initial response is
// a *StreamError; afterwards failures arrive as an ErrorEvent.
func (c *Client) RAG(ctx context.Context, query string, opts RAGOptions) (*RAGStream, error) {
	body := mustJSON(ragPayload(query, opts, true))
	resp, err := c.roundTrip(ctx, http.MethodPost, "/rag", body, "application/json")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg := serverMessage(resp)
		resp.Body.Close()
		return nil, &StreamError{Status: resp.StatusCode, Message: msg}
	}
	stream := &RAGStream{
		events: make(chan StreamEvent),
		body:   resp.Body,
	}
	go stream.run(ctx)
	return stream, nil
}

func ragPayload(query string, opts RAGOptions, stream bool) map[string]any {
	payload := map[string]any{"query": query, "stream": stream}
	if opts.CollectionID != "" {
		payload["filters"] = map[string]string{"collection_id": opts.CollectionID}
	}
	if opts.Limit > 0 {
		payload["limit"] = opts.Limit
	}
	return payload
}

// RAGStream delivers parsed events from a streaming retrieval query.
type RAGStream struct {
	events chan StreamEvent
	body   io.ReadCloser

	closeOnce sync.Once
}

// Events returns the event channel. It is closed after DoneEvent,
// ErrorEvent, or Close.
func (s *RAGStream) Events() <-chan StreamEvent {
	return s.events
}

// Close aborts the stream. Safe to call concurrently with reads; no
// events are delivered after it returns.
func (s *RAGStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

func (s *RAGStream) run(ctx context.Context) {
	defer close(s.events)
	defer s.Close()

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	parser := &ragParser{}
	buf := make([]byte, 4096)
	for {
		n, err := s.body.Read(buf)
		if n > 0 {
			events, perr := parser.feed(buf[:n])
			for _, event := range events {
				if !s.emit(ctx, event) {
					return
				}
			}
			if perr != nil {
				s.emit(ctx, ErrorEvent{Err: perr})
				return
			}
			if parser.done() {
				return
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if err == io.EOF {
				if !parser.done() {
					s.emit(ctx, ErrorEvent{Err: io.ErrUnexpectedEOF})
				}
				return
			}
			s.emit(ctx, ErrorEvent{Err: err})
			return
		}
	}
}

func (s *RAGStream) emit(ctx context.Context, event StreamEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// ragParser is the state machine over the tag-delimited wire format:
// one <search>…</search> section followed by one <completion>…
// </completion> section, with tags and citation markers possibly split
// across chunk boundaries.
type ragParser struct {
	state      parserState
	buf        []byte
	completion []byte // raw completion bytes released for emission
	emitted    string // last normalized text delivered
}

type parserState int

const (
	stateAwaitSearch parserState = iota
	stateAwaitCompletion
	stateInCompletion
	stateDone
)

const (
	openSearch      = "<search>"
	closeSearch     = "</search>"
	openCompletion  = "<completion>"
	closeCompletion = "</completion>"
)

func (p *ragParser) done() bool { return p.state == stateDone }

func (p *ragParser) feed(chunk []byte) ([]StreamEvent, error) {
	p.buf = append(p.buf, chunk...)
	var events []StreamEvent
	for {
		switch p.state {
		case stateAwaitSearch:
			start := bytes.Index(p.buf, []byte(openSearch))
			if start < 0 {
				return events, nil
			}
			end := bytes.Index(p.buf, []byte(closeSearch))
			if end < 0 {
				return events, nil
			}
			raw := p.buf[start+len(openSearch) : end]
			var sources []Source
			if err := json.Unmarshal(raw, &sources); err != nil {
				p.state = stateDone
				return events, fmt.Errorf("parse sources: %w", err)
			}
			events = append(events, SourcesEvent{Sources: sources})
			p.buf = p.buf[end+len(closeSearch):]
			p.state = stateAwaitCompletion

		case stateAwaitCompletion:
			start := bytes.Index(p.buf, []byte(openCompletion))
			if start < 0 {
				return events, nil
			}
			p.buf = p.buf[start+len(openCompletion):]
			p.state = stateInCompletion

		case stateInCompletion:
			if end := bytes.Index(p.buf, []byte(closeCompletion)); end >= 0 {
				p.completion = append(p.completion, p.buf[:end]...)
				p.buf = nil
				p.state = stateDone
				if event, ok := p.textEvent(); ok {
					events = append(events, event)
				}
				events = append(events, DoneEvent{})
				return events, nil
			}
			hold := holdback(p.buf)
			release := len(p.buf) - hold
			if release > 0 {
				p.completion = append(p.completion, p.buf[:release]...)
				p.buf = p.buf[release:]
				if event, ok := p.textEvent(); ok {
					events = append(events, event)
				}
			}
			return events, nil

		case stateDone:
			return events, nil
		}
	}
}

// textEvent normalizes the released completion and reports whether it
// grew since the last emission.
func (p *ragParser) textEvent() (TextDeltaEvent, bool) {
	normalized := NormalizeCitations(string(p.completion))
	if normalized == p.emitted {
		return TextDeltaEvent{}, false
	}
	p.emitted = normalized
	return TextDeltaEvent{Text: normalized}, true
}

// holdback returns how many trailing bytes must be withheld because
// they could be the start of a close tag or an unfinished citation
// marker. Withholding keeps emitted text monotonic: once released, a
// byte's normalized form never changes.
func holdback(b []byte) int {
	if n := tagHoldback(b); n > 0 {
		return n
	}
	return markerHoldback(b)
}

// tagHoldback matches a suffix that is a proper prefix of the close
// tag.
func tagHoldback(b []byte) int {
	max := len(closeCompletion) - 1
	if max > len(b) {
		max = len(b)
	}
	for n := max; n > 0; n-- {
		if bytes.HasSuffix(b, []byte(closeCompletion)[:n]) {
			return n
		}
	}
	return 0
}

// markerHoldback matches a suffix that is an unfinished citation
// marker ("[", "[[cit", "[citation:12", "[[citation:3]", ...). A marker
// settled by a following non-']' byte is never held.
func markerHoldback(b []byte) int {
	// A full marker is at most [[citation:<digits>]]; bound the scan.
	start := len(b) - 32
	if start < 0 {
		start = 0
	}
	for i := start; i < len(b); i++ {
		if b[i] != '[' {
			continue
		}
		if isMarkerPrefix(b[i:]) {
			return len(b) - i
		}
	}
	return 0
}

// isMarkerPrefix reports whether s is a prefix of a citation marker
// that could still be extended by more input.
func isMarkerPrefix(s []byte) bool {
	i := 0
	for i < len(s) && i < 2 && s[i] == '[' {
		i++
	}
	if i == 0 {
		return false
	}
	const word = "citation:"
	w := 0
	for i < len(s) && w < len(word) {
		if s[i] != word[w] {
			return false
		}
		i++
		w++
	}
	if i == len(s) {
		return true
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i == len(s) {
		return true
	}
	if digits == 0 {
		return false
	}
	closes := 0
	for i < len(s) && closes < 2 && s[i] == ']' {
		i++
		closes++
	}
	// Only an unfinished suffix is a prefix; anything followed by more
	// bytes is settled.
	return i == len(s) && closes < 2
}

var citationPattern = regexp.MustCompile(`\[\[?citation:(\d+)\]\]?`)

// NormalizeCitations rewrites [[citation:N]]-style markers (single or
// double brackets) to the [citation](N) link form. Already-normalized
// text passes through unchanged.
func NormalizeCitations(text string) string {
	return citationPattern.ReplaceAllString(text, "[citation]($1)")
}
