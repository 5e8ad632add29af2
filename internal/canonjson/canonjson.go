// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package canonjson produces a deterministic JSON encoding used for payload
// hashing (content-addressed dedup, C7) and migration export hash chaining
// (C14). The same logical payload must always produce the same bytes
// regardless of map iteration order or which goroutine built it.
package canonjson

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// Marshal encodes v as canonical JSON: object keys sorted lexicographically
// at every nesting level, no insignificant whitespace, UTF-8 with non-ASCII
// characters preserved (not \uXXXX-escaped).
func Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode for canonicalization: %w", err)
	}

	canon := canonicalize(generic)

	var buf []byte
	enc := json.NewEncoder(sliceWriter{&buf})
	enc.SetEscapeHTML(false)
	if err := enc.Encode(canon); err != nil {
		return nil, fmt.Errorf("encode canonical form: %w", err)
	}
	// json.Encoder.Encode appends a trailing newline; canonical form has none.
	if n := len(buf); n > 0 && buf[n-1] == '\n' {
		buf = buf[:n-1]
	}
	return buf, nil
}

// canonicalize walks a decoded JSON value and returns an orderedObject in
// place of every map, so encoding emits keys sorted ascending.
func canonicalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := make(orderedObject, 0, len(keys))
		for _, k := range keys {
			obj = append(obj, orderedField{key: k, value: canonicalize(val[k])})
		}
		return obj
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = canonicalize(item)
		}
		return out
	default:
		return val
	}
}

// orderedObject marshals as a JSON object preserving insertion order, which
// canonicalize has already sorted by key.
type orderedObject []orderedField

type orderedField struct {
	key   string
	value interface{}
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, f := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		valJSON, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}

type sliceWriter struct{ buf *[]byte }

func (w sliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

// Hash returns the lowercase hex SHA-256 digest of v's canonical JSON
// encoding, for callers that hold a value rather than canonical bytes.
func Hash(v interface{}) (string, error) {
	canon, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// HashBytes returns the lowercase hex SHA-256 digest of already-canonical
// bytes, without re-decoding them. Used for event payload hashes (emitter,
// integrity verifier) and for payload_blobs.content_hash dedup.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Unmarshal decodes canonical (or any valid) JSON into v. Key order carries
// no meaning on decode, so this is a plain pass-through to goccy/go-json.
func Unmarshal(b []byte, v interface{}) error {
	return json.Unmarshal(b, v)
}
