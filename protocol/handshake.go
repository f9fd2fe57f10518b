// File: protocol/handshake.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// RFC 6455 server-side handshake (spec.md §4.1). Grounded line-for-line
// on _examples/original_source/libvncserver/websockets.c's
// webSocketsCheck/webSocketsHandshake: peek-based scheme selection,
// line-oriented header scan, Hixie rejection, and the
// Sec-WebSocket-Accept computation via two separate hash writes rather
// than a string concatenation.

package protocol

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/momentics/wscore/api"
)

// WebSocketGUID is the fixed magic value RFC 6455 §1.3 concatenates
// with the client key before hashing.
const WebSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// FlashPolicyResponse is written verbatim, then the connection is
// closed, when the first byte of a connection is '<' (a legacy Flash
// cross-domain policy probe rather than a WebSocket client).
const FlashPolicyResponse = `<cross-domain-policy><allow-access-from domain="*" to-ports="*" /></cross-domain-policy>` + "\n"

// Scheme identifies which transport scheme a Peek call selected.
type Scheme int

const (
	SchemeNone Scheme = iota // read timeout or early close: caller should fall back to its own protocol
	SchemeFlash              // Flash policy probe: response already sent, connection should close
	SchemeWS
	SchemeWSS
)

// PeekResult reports the outcome of PeekScheme.
type PeekResult struct {
	Scheme Scheme
	Prefix [4]byte // first 4 bytes of the connection, valid for SchemeWS/SchemeWSS
}

// PeekScheme peeks the first 4 bytes of the connection through br,
// without consuming them, and classifies the connection per spec.md
// §4.1. It sets no read deadline of its own: the wait is bounded only
// by a deadline the caller has already set on the underlying
// connection (transport's listener sets one from
// control.KeyClientConnectWaitMs); without one it blocks until 4 bytes
// arrive or the read fails. A read that hits that deadline, or a peer
// that closes before sending 4 bytes, yields SchemeNone.
//
// br must be a *bufio.Reader wrapping tr's Read method; tr is used
// only for writing the Flash policy response.
func PeekScheme(tr api.Transport, br *bufio.Reader) (PeekResult, error) {
	peeked, err := br.Peek(4)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF || errors.Is(err, os.ErrDeadlineExceeded) {
			return PeekResult{Scheme: SchemeNone}, nil
		}
		return PeekResult{}, err
	}

	var prefix [4]byte
	copy(prefix[:], peeked)

	switch {
	case prefix[0] == '<':
		if _, werr := tr.Write([]byte(FlashPolicyResponse)); werr != nil {
			log.Printf("protocol: failed sending Flash policy response: %v", werr)
		}
		return PeekResult{Scheme: SchemeFlash, Prefix: prefix}, nil
	case prefix[0] == 0x16 || prefix[0] == 0x80:
		// Caller is responsible for wrapping tr in TLS and re-peeking;
		// this core does not itself terminate TLS (out of scope per
		// spec.md §1's transport collaborator boundary).
		return PeekResult{Scheme: SchemeWSS, Prefix: prefix}, nil
	default:
		return PeekResult{Scheme: SchemeWS, Prefix: prefix}, nil
	}
}

// HandshakeResult carries everything the handshake extracted from the
// client's request that a caller might need afterward.
type HandshakeResult struct {
	Path     string
	Host     string
	Origin   string
	Protocol SubProtocol
}

// SubProtocol identifies the negotiated framing mode.
type SubProtocol int

const (
	SubProtocolBase64NoHeader SubProtocol = iota // default: base64, no Sec-WebSocket-Protocol echoed
	SubProtocolBase64
	SubProtocolBinary
)

func (p SubProtocol) headerValue() string {
	switch p {
	case SubProtocolBinary:
		return "binary"
	case SubProtocolBase64:
		return "base64"
	default:
		return ""
	}
}

// EncodingMode reports the frame encoding a negotiated SubProtocol
// implies.
func (p SubProtocol) EncodingMode() EncodingMode {
	if p == SubProtocolBinary {
		return EncodingBinary
	}
	return EncodingBase64
}

// MaxHandshakeLen bounds the size of the buffered HTTP request line
// scan (WEBSOCKETS_MAX_HANDSHAKE_LEN in the original).
const MaxHandshakeLen = 4096

// Handshake reads and validates the client's HTTP upgrade request from
// br, then writes the 101 response to tr. It returns the parsed
// request metadata on success.
func Handshake(tr api.Transport, br *bufio.Reader) (HandshakeResult, error) {
	var res HandshakeResult
	var secKey, secVersion string
	haveProtocolHeader := false
	var offeredProtocols string

	requestLine, err := readLine(br)
	if err != nil {
		log.Printf("protocol: handshake rejected: reading request line: %v", err)
		return res, ErrProto
	}
	if !strings.HasPrefix(requestLine, "GET ") {
		log.Printf("protocol: handshake rejected: request line is not a GET")
		return res, ErrProto
	}
	path := strings.TrimPrefix(requestLine, "GET ")
	if idx := strings.LastIndex(path, " HTTP/1."); idx >= 0 {
		path = path[:idx]
	}
	res.Path = path

	total := len(requestLine)
	for {
		line, lerr := readLine(br)
		if lerr != nil {
			log.Printf("protocol: handshake rejected: reading headers: %v", lerr)
			return res, ErrProto
		}
		total += len(line)
		if total >= MaxHandshakeLen {
			log.Printf("protocol: handshake rejected: request reaches %d bytes", MaxHandshakeLen)
			return res, ErrProto
		}
		if line == "" {
			break
		}

		name, value, ok := splitHeader(line)
		if !ok {
			continue
		}
		switch strings.ToLower(name) {
		case "host":
			res.Host = value
		case "origin":
			res.Origin = value
		case "sec-websocket-origin":
			if res.Origin == "" {
				res.Origin = value
			}
		case "sec-websocket-key":
			secKey = value
		case "sec-websocket-version":
			secVersion = value
		case "sec-websocket-protocol":
			haveProtocolHeader = true
			offeredProtocols = value
		}
	}

	version, _ := strconv.Atoi(strings.TrimSpace(secVersion))
	if version == 0 {
		// Hixie-era clients send no Sec-WebSocket-Version; no longer supported.
		log.Printf("protocol: handshake rejected: missing or zero Sec-WebSocket-Version (Hixie clients are not accepted)")
		return res, ErrProto
	}
	if res.Path == "" || res.Host == "" || res.Origin == "" {
		log.Printf("protocol: handshake rejected: missing path, Host or Origin")
		return res, ErrProto
	}
	if secKey == "" {
		log.Printf("protocol: handshake rejected: missing Sec-WebSocket-Key")
		return res, ErrProto
	}

	res.Protocol = SubProtocolBase64NoHeader
	if haveProtocolHeader {
		switch {
		case strings.Contains(offeredProtocols, "binary"):
			res.Protocol = SubProtocolBinary
		case strings.Contains(offeredProtocols, "base64"):
			res.Protocol = SubProtocolBase64
		}
	}

	accept := computeAcceptKey(secKey)
	if err := writeHandshakeResponse(tr, accept, res.Protocol); err != nil {
		return res, err
	}
	return res, nil
}

// computeAcceptKey mirrors webSocketsGenSha1Key's iovec-style hashing:
// the key and the GUID are written to the digest separately rather
// than string-concatenated first.
func computeAcceptKey(clientKey string) string {
	h := sha1.New()
	io.WriteString(h, clientKey)
	io.WriteString(h, WebSocketGUID)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func writeHandshakeResponse(tr api.Transport, accept string, proto SubProtocol) error {
	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "Sec-WebSocket-Accept: %s\r\n", accept)
	if hv := proto.headerValue(); hv != "" {
		fmt.Fprintf(&b, "Sec-WebSocket-Protocol: %s\r\n", hv)
	}
	b.WriteString("\r\n")
	_, err := tr.Write([]byte(b.String()))
	return err
}

// readLine reads one CRLF- or LF-terminated line from br, with the
// terminator stripped.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	return line, nil
}

// splitHeader splits "Name: value" into its parts.
func splitHeader(line string) (name, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], strings.TrimSpace(line[idx+1:]), true
}
