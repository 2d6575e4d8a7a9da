package air

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyIsNoneInitially(t *testing.T) {
	var b Body
	assert.True(t, b.IsNone())
	assert.Equal(t, BodyNone, b.Kind())
}

func TestBodySetOnce(t *testing.T) {
	var b Body
	b.SetOnce([]byte("hello"))
	assert.Equal(t, BodyOnce, b.Kind())
	assert.False(t, b.IsNone())
	assert.Equal(t, "hello", string(b.Once()))
}

func TestBodySetChunks(t *testing.T) {
	var b Body
	b.SetChunks([][]byte{[]byte("a"), []byte("b")})
	assert.Equal(t, BodyChunks, b.Kind())
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, b.Chunks())
}

func TestBodySetStream(t *testing.T) {
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Data: []byte("x")}
	close(ch)

	var b Body
	b.SetStream(ch)
	assert.Equal(t, BodyStream, b.Kind())

	chunk := <-b.Stream()
	assert.Equal(t, "x", string(chunk.Data))
}

func TestBodySetBoxed(t *testing.T) {
	var b Body
	r := strings.NewReader("boxed")
	b.SetBoxed(r)
	assert.Equal(t, BodyBoxed, b.Kind())
	assert.Same(t, r, b.Boxed())
}

func TestBodySetError(t *testing.T) {
	var b Body
	err := errors.New("boom")
	b.SetError(err)
	assert.Equal(t, BodyError, b.Kind())
	assert.Same(t, err, b.Error())
}

func TestBodySettersOverwritePreviousVariant(t *testing.T) {
	var b Body
	b.SetOnce([]byte("first"))
	b.SetChunks([][]byte{[]byte("second")})
	assert.Equal(t, BodyChunks, b.Kind())
	assert.Empty(t, b.Once())
}

func TestBodyTakeResetsToNone(t *testing.T) {
	var b Body
	b.SetOnce([]byte("hello"))

	taken := b.Take()
	assert.Equal(t, BodyOnce, taken.Kind())
	assert.Equal(t, "hello", string(taken.Once()))
	assert.True(t, b.IsNone())
}

func TestBodyWriteToOnce(t *testing.T) {
	var b Body
	b.SetOnce([]byte("hello"))
	buf := &bytes.Buffer{}
	n, err := b.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", buf.String())
}

func TestBodyWriteToChunks(t *testing.T) {
	var b Body
	b.SetChunks([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	buf := &bytes.Buffer{}
	n, err := b.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "abc", buf.String())
}

func TestBodyWriteToStream(t *testing.T) {
	ch := make(chan StreamChunk, 2)
	ch <- StreamChunk{Data: []byte("a")}
	ch <- StreamChunk{Data: []byte("b")}
	close(ch)

	var b Body
	b.SetStream(ch)
	buf := &bytes.Buffer{}
	n, err := b.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "ab", buf.String())
}

func TestBodyWriteToStreamErrorAborts(t *testing.T) {
	ch := make(chan StreamChunk, 2)
	ch <- StreamChunk{Data: []byte("a")}
	ch <- StreamChunk{Err: errors.New("stream broke")}
	close(ch)

	var b Body
	b.SetStream(ch)
	buf := &bytes.Buffer{}
	_, err := b.WriteTo(buf)
	assert.Error(t, err)
	assert.Equal(t, "a", buf.String())
}

func TestBodyWriteToBoxed(t *testing.T) {
	var b Body
	b.SetBoxed(strings.NewReader("boxed content"))
	buf := &bytes.Buffer{}
	n, err := b.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len("boxed content")), n)
	assert.Equal(t, "boxed content", buf.String())
}

func TestBodyWriteToError(t *testing.T) {
	var b Body
	b.SetError(errors.New("boom"))
	buf := &bytes.Buffer{}
	_, err := b.WriteTo(buf)
	assert.Error(t, err)
}

func TestBodyWriteToNoneIsNoop(t *testing.T) {
	var b Body
	buf := &bytes.Buffer{}
	n, err := b.WriteTo(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, buf.String())
}
