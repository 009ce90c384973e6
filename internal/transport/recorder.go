package transport

import (
	"encoding/binary"
	"io"
)

// NewFileRecorder returns a RecorderFunc that appends each dispatched packet
// to w as `fromClient:u32 LE | length:u32 LE | payload`, the format
// ReplayConnection reads back. Install it via Connection.StartRecording to
// capture a replay of a live game.
func NewFileRecorder(w io.Writer) RecorderFunc {
	return func(fromClient uint32, payload []byte) {
		var header [8]byte
		binary.LittleEndian.PutUint32(header[0:4], fromClient)
		binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))
		w.Write(header[:])
		w.Write(payload)
	}
}
