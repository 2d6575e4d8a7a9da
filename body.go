package air

import "io"

// BodyKind discriminates the variant currently held by a Body.
type BodyKind int

// Body variants. Once a Body transitions to a non-None kind it can only
// return to BodyNone via Take, which hands ownership of the underlying
// value out to the caller.
const (
	BodyNone BodyKind = iota
	BodyOnce
	BodyChunks
	BodyStream
	BodyBoxed
	BodyError
)

// StreamChunk is one item produced by a BodyStream: either a byte slice or
// a terminal error.
type StreamChunk struct {
	Data []byte
	Err  error
}

// Body is the sum-type body abstraction shared by Request and Response.
// Invariant: once transitioned away from BodyNone it cannot be rewound
// except via Take.
type Body struct {
	kind BodyKind

	once   []byte
	chunks [][]byte
	stream <-chan StreamChunk
	boxed  io.Reader
	err    error
}

// Kind reports the current variant.
func (b *Body) Kind() BodyKind {
	return b.kind
}

// IsNone reports whether the Body is still in its initial, empty state.
func (b *Body) IsNone() bool {
	return b.kind == BodyNone
}

// reset returns the Body to BodyNone, dropping any held value.
func (b *Body) reset() {
	*b = Body{}
}

// SetOnce transitions the Body to BodyOnce, holding data in full.
func (b *Body) SetOnce(data []byte) {
	b.reset()
	b.kind = BodyOnce
	b.once = data
}

// SetChunks transitions the Body to BodyChunks, a queue of byte slices to
// be written in order.
func (b *Body) SetChunks(chunks [][]byte) {
	b.reset()
	b.kind = BodyChunks
	b.chunks = chunks
}

// SetStream transitions the Body to BodyStream, a lazy sequence of chunk
// results; the server writes each as it arrives.
func (b *Body) SetStream(ch <-chan StreamChunk) {
	b.reset()
	b.kind = BodyStream
	b.stream = ch
}

// SetBoxed transitions the Body to BodyBoxed, an arbitrary io.Reader of
// unknown length (e.g. a file handle).
func (b *Body) SetBoxed(r io.Reader) {
	b.reset()
	b.kind = BodyBoxed
	b.boxed = r
}

// SetError transitions the Body to BodyError, a terminal StatusError body.
func (b *Body) SetError(err error) {
	b.reset()
	b.kind = BodyError
	b.err = err
}

// Once returns the data held by a BodyOnce body.
func (b *Body) Once() []byte {
	return b.once
}

// Chunks returns the chunk queue held by a BodyChunks body.
func (b *Body) Chunks() [][]byte {
	return b.chunks
}

// Stream returns the channel held by a BodyStream body.
func (b *Body) Stream() <-chan StreamChunk {
	return b.stream
}

// Boxed returns the reader held by a BodyBoxed body.
func (b *Body) Boxed() io.Reader {
	return b.boxed
}

// Error returns the error held by a BodyError body.
func (b *Body) Error() error {
	return b.err
}

// Take removes the current value from the Body, returning the Body to
// BodyNone, and hands the removed variant's fields back to the caller as
// a detached Body value.
func (b *Body) Take() Body {
	taken := *b
	b.reset()
	return taken
}

// WriteTo writes the Body's contents to w. For BodyStream, each chunk is
// written as it is received; a chunk error aborts the write and is
// returned, leaving connection-level abrupt closure to the caller.
func (b *Body) WriteTo(w io.Writer) (int64, error) {
	switch b.kind {
	case BodyNone:
		return 0, nil
	case BodyOnce:
		n, err := w.Write(b.once)
		return int64(n), err
	case BodyChunks:
		var total int64
		for _, c := range b.chunks {
			n, err := w.Write(c)
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
		return total, nil
	case BodyStream:
		var total int64
		for chunk := range b.stream {
			if chunk.Err != nil {
				return total, chunk.Err
			}
			n, err := w.Write(chunk.Data)
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
		return total, nil
	case BodyBoxed:
		return io.Copy(w, b.boxed)
	case BodyError:
		return 0, b.err
	default:
		return 0, nil
	}
}
