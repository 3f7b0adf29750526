// Package stream re-encodes model stream events into line-delimited wire
// frames for browser clients.
//
// Every encoded stream ends with exactly one terminal frame: Complete when
// the event sequence is exhausted, or Error when an error event arrives, the
// context ends, or rendering fails. Nothing is read from the event channel
// after an error.
package stream

import (
	"context"
	"fmt"
	"iter"

	"github.com/tjfontaine/polyglot-chat-proxy/internal/domain"
)

// FrameKind tags a frame.
type FrameKind string

const (
	FrameData     FrameKind = "data"
	FrameComplete FrameKind = "complete"
	FrameError    FrameKind = "error"
)

// Frame is one pre-rendered unit of wire output.
type Frame struct {
	Kind FrameKind
	Text string
}

// Terminal reports whether f ends the stream.
func (f Frame) Terminal() bool {
	return f.Kind != FrameData
}

func (f Frame) String() string {
	return f.Text
}

// Encode returns the lazy frame sequence for events. Frames are rendered one
// at a time as the consumer pulls them; stopping iteration early stops
// reading events, and the producer is expected to observe ctx.
func Encode(ctx context.Context, events <-chan domain.StreamEvent, f Format) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for {
			var (
				ev domain.StreamEvent
				ok bool
			)
			select {
			case ev, ok = <-events:
			case <-ctx.Done():
				yield(errorFrame(f, ctx.Err().Error()))
				return
			}

			if !ok {
				if err := ctx.Err(); err != nil {
					yield(errorFrame(f, err.Error()))
					return
				}
				yield(Frame{Kind: FrameComplete, Text: f.Complete()})
				return
			}

			if ev.Error != nil {
				yield(errorFrame(f, ev.Error.Error()))
				return
			}

			if ev.Text == "" {
				continue
			}

			text, err := render(f, ev)
			if err != nil {
				yield(errorFrame(f, err.Error()))
				return
			}
			if !yield(Frame{Kind: FrameData, Text: text}) {
				return
			}
		}
	}
}

// Collect drains an encoded stream into a slice.
func Collect(frames iter.Seq[Frame]) []Frame {
	var out []Frame
	for frame := range frames {
		out = append(out, frame)
	}
	return out
}

// render calls f.Data, converting a panic into an error so a faulty format
// still ends the stream with an error frame.
func render(f Format, ev domain.StreamEvent) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("encode %s frame: %v", f.Name(), r)
		}
	}()
	text, err = f.Data(ev)
	if err != nil {
		return "", fmt.Errorf("encode %s frame: %w", f.Name(), err)
	}
	return text, nil
}

func errorFrame(f Format, message string) Frame {
	return Frame{Kind: FrameError, Text: f.Error(message)}
}
