package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	refreshFormatVersionCurrent = 1
	sessionFormatVersionCurrent = 1

	// Fixed-offset layout shared with the Lua scripts. The mutable fields
	// (revokedAt, replacedBy, lastActiveAt) sit at constant byte positions
	// so the scripts can splice them without decoding the whole record.
	recordTimestampSize = 8
	replacedBySlotSize  = 36

	refreshRevokedAtOffset  = 1 + 2*recordTimestampSize
	refreshReplacedByOffset = refreshRevokedAtOffset + recordTimestampSize
	refreshVariableOffset   = refreshReplacedByOffset + replacedBySlotSize

	sessionLastActiveOffset = 1 + 2*recordTimestampSize
	sessionVariableOffset   = sessionLastActiveOffset + recordTimestampSize + 1
)

// EncodeRefresh serializes a [RefreshRecord] into the v1 binary layout.
func EncodeRefresh(r *RefreshRecord) ([]byte, error) {
	if r.ReplacedBy != "" && r.RevokedAt == 0 {
		return nil, errors.New("replacedBy set on live record")
	}
	if r.ReplacedBy != "" && len(r.ReplacedBy) != replacedBySlotSize {
		return nil, errors.New("invalid replacedBy length")
	}

	var buf bytes.Buffer

	buf.WriteByte(refreshFormatVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.RevokedAt); err != nil {
		return nil, err
	}

	var slot [replacedBySlotSize]byte
	copy(slot[:], r.ReplacedBy)
	buf.Write(slot[:])

	for _, field := range []string{r.ID, r.UserID, r.SessionID} {
		if len(field) == 0 || len(field) > 255 {
			return nil, errors.New("invalid record field length")
		}
		buf.WriteByte(byte(len(field)))
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

// DecodeRefresh parses a v1 refresh record blob.
func DecodeRefresh(data []byte) (*RefreshRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != refreshFormatVersionCurrent {
		return nil, errors.New("invalid refresh record version")
	}

	r := &RefreshRecord{}

	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.RevokedAt); err != nil {
		return nil, err
	}

	var slot [replacedBySlotSize]byte
	if _, err := io.ReadFull(reader, slot[:]); err != nil {
		return nil, err
	}
	r.ReplacedBy, err = decodeSlot(slot)
	if err != nil {
		return nil, err
	}

	fields := [3]*string{&r.ID, &r.UserID, &r.SessionID}
	for _, field := range fields {
		length, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		if length == 0 {
			return nil, errors.New("empty record field")
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	if r.ReplacedBy != "" && r.RevokedAt == 0 {
		return nil, errors.New("replacedBy set on live record")
	}

	return r, nil
}

// EncodeSession serializes a [SessionRecord] into the v1 binary layout.
func EncodeSession(s *SessionRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastActiveAt); err != nil {
		return nil, err
	}
	buf.WriteByte(s.AuthMethod)

	if len(s.ID) == 0 || len(s.ID) > 255 {
		return nil, errors.New("invalid session id length")
	}
	buf.WriteByte(byte(len(s.ID)))
	buf.WriteString(s.ID)

	if len(s.UserID) == 0 || len(s.UserID) > 255 {
		return nil, errors.New("invalid session user id length")
	}
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	// Client context is opaque and may be empty.
	if len(s.ClientIP) > 255 || len(s.UserAgent) > 255 {
		return nil, errors.New("client context too long")
	}
	buf.WriteByte(byte(len(s.ClientIP)))
	buf.WriteString(s.ClientIP)
	buf.WriteByte(byte(len(s.UserAgent)))
	buf.WriteString(s.UserAgent)

	return buf.Bytes(), nil
}

// DecodeSession parses a v1 session record blob.
func DecodeSession(data []byte) (*SessionRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session record version")
	}

	s := &SessionRecord{}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.LastActiveAt); err != nil {
		return nil, err
	}

	method, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	s.AuthMethod = method

	required := [2]*string{&s.ID, &s.UserID}
	for _, field := range required {
		length, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		if length == 0 {
			return nil, errors.New("empty session field")
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	optional := [2]*string{&s.ClientIP, &s.UserAgent}
	for _, field := range optional {
		length, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		if length == 0 {
			continue
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	return s, nil
}

// decodeSlot reads the fixed replacedBy slot: either all zero (unset) or a
// full record ID with no zero bytes.
func decodeSlot(slot [replacedBySlotSize]byte) (string, error) {
	zeros := 0
	for _, b := range slot {
		if b == 0 {
			zeros++
		}
	}
	switch zeros {
	case len(slot):
		return "", nil
	case 0:
		return string(slot[:]), nil
	default:
		return "", errors.New("invalid replacedBy slot")
	}
}
