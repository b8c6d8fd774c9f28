package transport

import (
	"encoding/json"
	"fmt"
	"mime"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec selects the body encoding used on the wire.
type Codec string

const (
	// CodecJSON is the default encoding.
	CodecJSON Codec = "json"
	// CodecMsgpack trades readability for smaller bodies.
	CodecMsgpack Codec = "msgpack"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"
)

// ParseCodec maps a config value to a Codec. Empty means JSON.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return CodecJSON, nil
	case "msgpack", "mpk":
		return CodecMsgpack, nil
	default:
		return "", fmt.Errorf("unknown codec %q", s)
	}
}

// CodecForContentType picks the codec matching a Content-Type header, defaulting to JSON.
func CodecForContentType(contentType string) Codec {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return CodecJSON
	}
	switch mediaType {
	case contentTypeMsgpack, "application/x-msgpack", "application/vnd.msgpack":
		return CodecMsgpack
	default:
		return CodecJSON
	}
}

// ContentType is the header value for c.
func (c Codec) ContentType() string {
	if c == CodecMsgpack {
		return contentTypeMsgpack
	}
	return contentTypeJSON
}

// Marshal encodes v with c.
func (c Codec) Marshal(v any) ([]byte, error) {
	if c == CodecMsgpack {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

// Unmarshal decodes data into v with c.
func (c Codec) Unmarshal(data []byte, v any) error {
	if c == CodecMsgpack {
		return msgpack.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}
