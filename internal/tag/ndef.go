package tag

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// TNF is the NDEF type name format of a record.
type TNF uint8

const (
	TNFEmpty       TNF = 0x00
	TNFWellKnown   TNF = 0x01
	TNFMedia       TNF = 0x02
	TNFAbsoluteURI TNF = 0x03
	TNFExternal    TNF = 0x04
	TNFUnknown     TNF = 0x05
)

const (
	flagMB  = 0x80
	flagME  = 0x40
	flagCF  = 0x20
	flagSR  = 0x10
	flagIL  = 0x08
	maskTNF = 0x07
)

var (
	typeText = []byte("T")
	typeURI  = []byte("U")
)

// uriPrefixes is the NFC Forum URI record abbreviation table, indexed by code.
var uriPrefixes = []string{
	"", "http://www.", "https://www.", "http://", "https://", "tel:", "mailto:",
	"ftp://anonymous:anonymous@", "ftp://ftp.", "ftps://", "sftp://", "smb://",
	"nfs://", "ftp://", "dav://", "news:", "telnet://", "imap:", "rtsp://", "urn:",
	"pop:", "sip:", "sips:", "tftp:", "btspp://", "btl2cap://", "btgoep://",
	"tcpobex://", "irdaobex://", "file://", "urn:epc:id:", "urn:epc:tag:",
	"urn:epc:pat:", "urn:epc:raw:", "urn:epc:", "urn:nfc:",
}

// Record is a single NDEF record.
type Record struct {
	TNF     TNF
	Type    []byte
	ID      []byte
	Payload []byte
}

// IsText reports whether r is a well-known text record or a text/plain media record.
func (r Record) IsText() bool {
	switch r.TNF {
	case TNFWellKnown:
		return bytes.Equal(r.Type, typeText)
	case TNFMedia:
		return strings.HasPrefix(strings.ToLower(string(r.Type)), "text/plain")
	}
	return false
}

// IsURI reports whether r carries a URI.
func (r Record) IsURI() bool {
	return (r.TNF == TNFWellKnown && bytes.Equal(r.Type, typeURI)) || r.TNF == TNFAbsoluteURI
}

// URI expands the record's URI, resolving the abbreviation byte of
// well-known URI records.
func (r Record) URI() (string, error) {
	if r.TNF == TNFAbsoluteURI {
		return string(r.Type), nil
	}
	if !r.IsURI() {
		return "", fmt.Errorf("record is not a URI record")
	}
	if len(r.Payload) == 0 {
		return "", fmt.Errorf("empty URI record")
	}
	code := int(r.Payload[0])
	if code >= len(uriPrefixes) {
		return "", fmt.Errorf("unknown URI prefix code 0x%02x", code)
	}
	return uriPrefixes[code] + string(r.Payload[1:]), nil
}

// EncodeTextRecord builds a well-known text record with a UTF-8 status byte
// followed by the language code and the text.
func EncodeTextRecord(text, lang string) Record {
	if len(lang) > 0x3f {
		lang = lang[:0x3f]
	}
	payload := make([]byte, 0, 1+len(lang)+len(text))
	payload = append(payload, byte(len(lang)))
	payload = append(payload, lang...)
	payload = append(payload, text...)
	return Record{TNF: TNFWellKnown, Type: typeText, Payload: payload}
}

// EncodeURIRecord builds a well-known URI record using the longest matching
// abbreviation.
func EncodeURIRecord(uri string) Record {
	code := 0
	for i, p := range uriPrefixes {
		if p != "" && strings.HasPrefix(uri, p) && len(p) > len(uriPrefixes[code]) {
			code = i
		}
	}
	payload := append([]byte{byte(code)}, uri[len(uriPrefixes[code]):]...)
	return Record{TNF: TNFWellKnown, Type: typeURI, Payload: payload}
}

// textPayload strips the status byte and language code when present. A first
// byte below 0x20 cannot be printable text, so it is read as a status byte.
func textPayload(p []byte) []byte {
	if len(p) == 0 || p[0] >= 0x20 {
		return p
	}
	n := 1 + int(p[0]&0x3f)
	if n > len(p) {
		return nil
	}
	return p[n:]
}

// asciiFallback keeps printable ASCII and blanks everything else.
func asciiFallback(p []byte) string {
	var b strings.Builder
	b.Grow(len(p))
	for _, c := range p {
		if c >= 0x20 && c < 0x7f {
			b.WriteByte(c)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// ParseMessage decodes a binary NDEF message. Chunked records are rejected.
func ParseMessage(b []byte) ([]Record, error) {
	var records []Record
	for len(b) > 0 {
		header := b[0]
		b = b[1:]
		if header&flagCF != 0 {
			return nil, fmt.Errorf("%w: chunked records are not supported", ErrMalformedMessage)
		}
		if len(b) < 1 {
			return nil, fmt.Errorf("%w: truncated header", ErrMalformedMessage)
		}
		typeLen := int(b[0])
		b = b[1:]

		var payloadLen int
		if header&flagSR != 0 {
			if len(b) < 1 {
				return nil, fmt.Errorf("%w: truncated payload length", ErrMalformedMessage)
			}
			payloadLen = int(b[0])
			b = b[1:]
		} else {
			if len(b) < 4 {
				return nil, fmt.Errorf("%w: truncated payload length", ErrMalformedMessage)
			}
			payloadLen = int(binary.BigEndian.Uint32(b[:4]))
			b = b[4:]
		}

		idLen := 0
		if header&flagIL != 0 {
			if len(b) < 1 {
				return nil, fmt.Errorf("%w: truncated id length", ErrMalformedMessage)
			}
			idLen = int(b[0])
			b = b[1:]
		}

		if typeLen+idLen+payloadLen > len(b) || payloadLen < 0 {
			return nil, fmt.Errorf("%w: record exceeds message length", ErrMalformedMessage)
		}
		rec := Record{TNF: TNF(header & maskTNF)}
		rec.Type = append([]byte(nil), b[:typeLen]...)
		b = b[typeLen:]
		if idLen > 0 {
			rec.ID = append([]byte(nil), b[:idLen]...)
			b = b[idLen:]
		}
		rec.Payload = append([]byte(nil), b[:payloadLen]...)
		b = b[payloadLen:]
		records = append(records, rec)

		if header&flagME != 0 {
			break
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrMalformedMessage)
	}
	return records, nil
}

// MarshalMessage encodes records as a binary NDEF message.
func MarshalMessage(records []Record) []byte {
	var buf bytes.Buffer
	for i, rec := range records {
		header := byte(rec.TNF) & maskTNF
		if i == 0 {
			header |= flagMB
		}
		if i == len(records)-1 {
			header |= flagME
		}
		short := len(rec.Payload) < 256
		if short {
			header |= flagSR
		}
		if len(rec.ID) > 0 {
			header |= flagIL
		}
		buf.WriteByte(header)
		buf.WriteByte(byte(len(rec.Type)))
		if short {
			buf.WriteByte(byte(len(rec.Payload)))
		} else {
			var n [4]byte
			binary.BigEndian.PutUint32(n[:], uint32(len(rec.Payload)))
			buf.Write(n[:])
		}
		if len(rec.ID) > 0 {
			buf.WriteByte(byte(len(rec.ID)))
		}
		buf.Write(rec.Type)
		buf.Write(rec.ID)
		buf.Write(rec.Payload)
	}
	return buf.Bytes()
}
