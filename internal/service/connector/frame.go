package connector

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

const maxFrameSize = 8 << 20

// decodeFrame turns a websocket message into a UTF-8 payload. Gzip is detected by its magic
// bytes and falls back to raw deflate when the gzip stream is invalid. Other binary frames are
// tried as raw deflate first. Undecodable frames are dropped.
func decodeFrame(messageType int, data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}

	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		if payload, ok := gunzip(data); ok {
			return payload, true
		}
		return inflate(data)
	}

	if messageType == websocket.BinaryMessage {
		if payload, ok := inflate(data); ok {
			return payload, true
		}
	}

	if !utf8.Valid(data) {
		return nil, false
	}
	return data, true
}

func gunzip(data []byte) ([]byte, bool) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer reader.Close()
	return readText(reader)
}

func inflate(data []byte) ([]byte, bool) {
	reader := flate.NewReader(bytes.NewReader(data))
	defer reader.Close()
	return readText(reader)
}

func readText(r io.Reader) ([]byte, bool) {
	payload, err := io.ReadAll(io.LimitReader(r, maxFrameSize))
	if err != nil || len(payload) == 0 || !utf8.Valid(payload) {
		return nil, false
	}
	return payload, true
}
