package protocol

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

// handshakeTransport feeds a canned request to Handshake/PeekScheme and
// captures whatever gets written back.
type handshakeTransport struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func newHandshakeTransport(request string) *handshakeTransport {
	return &handshakeTransport{in: bytes.NewReader([]byte(request))}
}

func (h *handshakeTransport) Read(p []byte) (int, error)  { return h.in.Read(p) }
func (h *handshakeTransport) Write(p []byte) (int, error) { return h.out.Write(p) }
func (h *handshakeTransport) Close() error                { return nil }

const validRequest = "GET /socket HTTP/1.1\r\n" +
	"Host: example.com\r\n" +
	"Origin: http://example.com\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Sec-WebSocket-Version: 13\r\n" +
	"\r\n"

func TestHandshakeValidRequestComputesAccept(t *testing.T) {
	tr := newHandshakeTransport(validRequest)
	br := bufio.NewReader(tr)

	res, err := Handshake(tr, br)
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if res.Path != "/socket" || res.Host != "example.com" || res.Origin != "http://example.com" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Protocol != SubProtocolBase64NoHeader {
		t.Fatalf("protocol = %v, want default base64-no-header", res.Protocol)
	}

	resp := tr.out.String()
	if !strings.HasPrefix(resp, "HTTP/1.1 101 Switching Protocols\r\n") {
		t.Fatalf("unexpected response: %q", resp)
	}
	// Known answer for the RFC 6455 §1.3 worked example.
	if !strings.Contains(resp, "Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n") {
		t.Fatalf("accept key mismatch in response: %q", resp)
	}
	if strings.Contains(resp, "Sec-WebSocket-Protocol:") {
		t.Fatalf("default negotiation must not echo a protocol header: %q", resp)
	}
}

func TestHandshakeNegotiatesBinarySubProtocol(t *testing.T) {
	request := "GET /socket HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Origin: http://example.com\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"Sec-WebSocket-Protocol: base64, binary\r\n" +
		"\r\n"
	tr := newHandshakeTransport(request)
	br := bufio.NewReader(tr)

	res, err := Handshake(tr, br)
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if res.Protocol != SubProtocolBinary {
		t.Fatalf("protocol = %v, want binary (binary must win over base64)", res.Protocol)
	}
	if res.Protocol.EncodingMode() != EncodingBinary {
		t.Fatalf("EncodingMode = %v, want EncodingBinary", res.Protocol.EncodingMode())
	}
	if !strings.Contains(tr.out.String(), "Sec-WebSocket-Protocol: binary\r\n") {
		t.Fatalf("response missing negotiated protocol header: %q", tr.out.String())
	}
}

func TestHandshakeNegotiatesBase64SubProtocol(t *testing.T) {
	request := "GET /socket HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Origin: http://example.com\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"Sec-WebSocket-Protocol: base64\r\n" +
		"\r\n"
	tr := newHandshakeTransport(request)
	br := bufio.NewReader(tr)

	res, err := Handshake(tr, br)
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if res.Protocol != SubProtocolBase64 {
		t.Fatalf("protocol = %v, want base64", res.Protocol)
	}
}

func TestHandshakeRejectsHixie(t *testing.T) {
	request := "GET /socket HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Origin: http://example.com\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"\r\n"
	tr := newHandshakeTransport(request)
	br := bufio.NewReader(tr)

	if _, err := Handshake(tr, br); err != ErrProto {
		t.Fatalf("got %v, want ErrProto (missing Sec-WebSocket-Version)", err)
	}
}

func TestHandshakeRejectsMissingKey(t *testing.T) {
	request := "GET /socket HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Origin: http://example.com\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"\r\n"
	tr := newHandshakeTransport(request)
	br := bufio.NewReader(tr)

	if _, err := Handshake(tr, br); err != ErrProto {
		t.Fatalf("got %v, want ErrProto (missing Sec-WebSocket-Key)", err)
	}
}

func TestHandshakeRejectsMissingOrigin(t *testing.T) {
	request := "GET /socket HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"\r\n"
	tr := newHandshakeTransport(request)
	br := bufio.NewReader(tr)

	if _, err := Handshake(tr, br); err != ErrProto {
		t.Fatalf("got %v, want ErrProto (missing Origin)", err)
	}
}

func TestHandshakeRejectsNonGETRequestLine(t *testing.T) {
	request := "POST /socket HTTP/1.1\r\n\r\n"
	tr := newHandshakeTransport(request)
	br := bufio.NewReader(tr)

	if _, err := Handshake(tr, br); err != ErrProto {
		t.Fatalf("got %v, want ErrProto (non-GET request line)", err)
	}
}

func TestPeekSchemeDetectsFlashPolicyRequest(t *testing.T) {
	tr := newHandshakeTransport("<policy-file-request/>\x00")
	br := bufio.NewReader(tr)

	res, err := PeekScheme(tr, br)
	if err != nil {
		t.Fatalf("PeekScheme: %v", err)
	}
	if res.Scheme != SchemeFlash {
		t.Fatalf("scheme = %v, want SchemeFlash", res.Scheme)
	}
	if tr.out.String() != FlashPolicyResponse {
		t.Fatalf("Flash policy response mismatch: %q", tr.out.String())
	}
}

func TestPeekSchemeDetectsPlainWS(t *testing.T) {
	tr := newHandshakeTransport(validRequest)
	br := bufio.NewReader(tr)

	res, err := PeekScheme(tr, br)
	if err != nil {
		t.Fatalf("PeekScheme: %v", err)
	}
	if res.Scheme != SchemeWS {
		t.Fatalf("scheme = %v, want SchemeWS", res.Scheme)
	}

	// Peek must not consume bytes: a full Handshake still succeeds
	// reading through the same bufio.Reader afterward.
	if _, err := Handshake(tr, br); err != nil {
		t.Fatalf("Handshake after PeekScheme: %v", err)
	}
}

func TestPeekSchemeDetectsTLSClientHello(t *testing.T) {
	tr := newHandshakeTransport(string([]byte{0x16, 0x03, 0x01, 0x00}))
	br := bufio.NewReader(tr)

	res, err := PeekScheme(tr, br)
	if err != nil {
		t.Fatalf("PeekScheme: %v", err)
	}
	if res.Scheme != SchemeWSS {
		t.Fatalf("scheme = %v, want SchemeWSS", res.Scheme)
	}
}

func TestPeekSchemeNoneOnEmptyConnection(t *testing.T) {
	tr := newHandshakeTransport("")
	br := bufio.NewReader(tr)

	res, err := PeekScheme(tr, br)
	if err != nil {
		t.Fatalf("PeekScheme: %v", err)
	}
	if res.Scheme != SchemeNone {
		t.Fatalf("scheme = %v, want SchemeNone", res.Scheme)
	}
}
