package cache

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	gstrconv "github.com/savsgio/gotils/strconv"
	"github.com/vmihailenco/msgpack/v5"
)

// Entry is the wrapper serialized under every key. Type is informational and is
// never used to coerce Value on read.
type Entry struct {
	Type  string `msgpack:"type" json:"type"`
	Value any    `msgpack:"value" json:"value"`
}

type typedEntry[T any] struct {
	Type  string `msgpack:"type" json:"type"`
	Value T      `msgpack:"value" json:"value"`
}

// Codec serializes entries to the bytes a Backend stores as text.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string                       { return "msgpack" }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }

// Unmarshal decodes exactly one value; trailing bytes are an error. Untyped
// numbers decode as int64, uint64 or float64 regardless of their wire width.
func (msgpackCodec) Unmarshal(data []byte, v any) error {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if r.Len() > 0 {
		return errors.Newf("msgpack: %d trailing bytes", r.Len())
	}
	return nil
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }

// Unmarshal decodes exactly one value. Untyped numbers decode as json.Number
// and are narrowed by decodeEntry.
func (jsonCodec) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("json: trailing data after entry")
	}
	return nil
}

var (
	// MsgpackCodec is the default, compact binary codec.
	MsgpackCodec Codec = msgpackCodec{}
	// JSONCodec stores entries as {"type":...,"value":...} text, readable by
	// other programs sharing the store.
	JSONCodec Codec = jsonCodec{}
)

// CodecByName returns the codec registered under name ("msgpack" or "json").
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "msgpack":
		return MsgpackCodec, nil
	case "json":
		return JSONCodec, nil
	}
	return nil, errors.Newf("cache: unknown codec %q", name)
}

// typeTag classifies value the way the stored wrapper records it.
func typeTag(value any) string {
	if value == nil {
		return "object"
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	default:
		return "object"
	}
}

func encodeEntry(codec Codec, value any) (string, error) {
	data, err := codec.Marshal(Entry{Type: typeTag(value), Value: value})
	if err != nil {
		return "", err
	}
	// data is freshly allocated and never written again
	return gstrconv.B2S(data), nil
}

func decodeEntry[T any](codec Codec, key string, text string) (T, error) {
	var entry typedEntry[T]
	if err := codec.Unmarshal(gstrconv.S2B(text), &entry); err != nil {
		var zero T
		return zero, errors.Mark(errors.Wrapf(err, "cache: decode %q", key), ErrMalformedEntry)
	}
	if entry.Type == "" {
		var zero T
		return zero, errors.Wrapf(ErrMalformedEntry, "cache: %q has no type tag", key)
	}
	if generic, ok := any(&entry.Value).(*any); ok {
		*generic = normalizeNumbers(*generic)
	} else {
		normalizeNumbers(any(entry.Value))
	}
	return entry.Value, nil
}

// normalizeNumbers rewrites untyped numbers so both codecs agree: integers
// become int64 (uint64 above math.MaxInt64) and everything else float64.
func normalizeNumbers(v any) any {
	switch n := v.(type) {
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n)
		}
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
			return u
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case map[string]any:
		for k, e := range n {
			n[k] = normalizeNumbers(e)
		}
		return n
	case []any:
		for i, e := range n {
			n[i] = normalizeNumbers(e)
		}
		return n
	}
	return v
}
