package http

import (
	"net/textproto"
	"slices"
	"strings"

	catutil "github.com/rambollwong/rainbowcat/util"
)

// header is a header table keeping the order names were first set in.
// Names are canonicalized, so "content-type" and "Content-Type" are one entry.
type header struct {
	names  []string
	values map[string]string
}

func newHeader() *header {
	return &header{values: make(map[string]string)}
}

func validHeader(name, value string) bool {
	return name != "" && !strings.ContainsAny(name, "\r\n: ") && !strings.ContainsAny(value, "\r\n")
}

func (h *header) set(name, value string) error {
	if !validHeader(name, value) {
		return ErrInvalidHeader
	}
	key := textproto.CanonicalMIMEHeaderKey(name)
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, key)
	}
	h.values[key] = value
	return nil
}

func (h *header) get(name string) (string, bool) {
	v, ok := h.values[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}

func (h *header) remove(name string) {
	key := textproto.CanonicalMIMEHeaderKey(name)
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)
	h.names = slices.DeleteFunc(h.names, func(n string) bool { return n == key })
}

// merge sets every entry of headers, in sorted name order. Nothing is set
// if one of the entries is invalid.
func (h *header) merge(headers map[string]string) error {
	names := catutil.MapKeys(headers)
	for _, name := range names {
		if !validHeader(name, headers[name]) {
			return ErrInvalidHeader
		}
	}
	slices.Sort(names)
	for _, name := range names {
		if err := h.set(name, headers[name]); err != nil {
			return err
		}
	}
	return nil
}

// appendTo serializes the table as "Name: Value\r\n" lines.
func (h *header) appendTo(b []byte) []byte {
	for _, name := range h.names {
		b = append(b, name...)
		b = append(b, ": "...)
		b = append(b, h.values[name]...)
		b = append(b, "\r\n"...)
	}
	return b
}
