// Package decode turns a still image into a decoded payload.
package decode

import (
	"context"
	"fmt"
	"image"
)

// Kind tags a decode outcome.
type Kind int

const (
	NotFound Kind = iota
	Found
	Error
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Found:
		return "found"
	case Error:
		return "decode_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of one decode attempt. Text is set only for Found
// and Err only for Error.
type Outcome struct {
	Kind   Kind
	Text   string
	Format string
	Err    error
}

// FoundText reports a decoded payload.
func FoundText(text, format string) Outcome { return Outcome{Kind: Found, Text: text, Format: format} }

// Absent reports that no code was present.
func Absent() Outcome { return Outcome{Kind: NotFound} }

// Failed reports an unexpected decoder fault.
func Failed(err error) Outcome {
	if err == nil {
		err = fmt.Errorf("decode: unspecified failure")
	}
	return Outcome{Kind: Error, Err: err}
}

func (o Outcome) String() string {
	switch o.Kind {
	case Found:
		return fmt.Sprintf("found(%q)", o.Text)
	case Error:
		return fmt.Sprintf("decode_error(%v)", o.Err)
	default:
		return o.Kind.String()
	}
}

// Decoder decodes a single image. Implementations must not retain img after
// returning; the caller reuses its pixels on the next tick.
type Decoder interface {
	Decode(ctx context.Context, img image.Image) Outcome
}

// Func adapts a function to the Decoder interface.
type Func func(ctx context.Context, img image.Image) Outcome

func (f Func) Decode(ctx context.Context, img image.Image) Outcome { return f(ctx, img) }
