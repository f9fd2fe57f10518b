// File: protocol/mask.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// XOR masking, applied a 32-bit word at a time where possible with a
// byte-wise tail for the remainder. Grounded on ws_decode.c's
// data32[i] ^= mask.u fast path; the union/unsafe-pointer cast is
// replaced with encoding/binary, per spec.md §9's explicit design note
// that byte-wise-safe alternatives are acceptable as long as the
// trailing residual is still handled correctly.

package protocol

import "encoding/binary"

// unmaskFullWords XORs the leading len(buf)-len(buf)%4 bytes of buf in
// place, word at a time, and returns how many bytes it processed. Any
// 0-3 byte tail is left untouched: the decoder either carries it to the
// next read cycle (frame not yet complete) or unmasks it byte-wise
// itself once the frame is known to be complete (unmaskTail below) —
// mirroring ws_decode.c's readAndDecode, which only ever byte-unmasks
// the tail once, not on every retry.
func unmaskFullWords(buf []byte, key [4]byte) int {
	kw := binary.LittleEndian.Uint32(key[:])
	n := len(buf) - len(buf)%4
	for i := 0; i < n; i += 4 {
		w := binary.LittleEndian.Uint32(buf[i:i+4]) ^ kw
		binary.LittleEndian.PutUint32(buf[i:i+4], w)
	}
	return n
}

// unmaskTail XORs buf byte-wise, using key[(offset+i)%4] for byte i —
// offset is the position of buf[0] within the overall masked region,
// needed so the key phase lines up correctly.
func unmaskTail(buf []byte, key [4]byte, offset int) {
	for i := range buf {
		buf[i] ^= key[(offset+i)%4]
	}
}

// unmaskWords is the simple whole-buffer form, for a payload that is
// available at once and needs no carry.
func unmaskWords(buf []byte, key [4]byte) {
	n := unmaskFullWords(buf, key)
	unmaskTail(buf[n:], key, n)
}
