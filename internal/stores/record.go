package stores

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"
)

const (
	resetCodeRecordVersionV1  = 1
	oauthStateRecordVersionV1 = 1
)

var errRecordCorrupt = errors.New("corrupt store record")

// ResetCodeRecord is the payload bound to one pending reset code.
type ResetCodeRecord struct {
	SubjectID string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type oauthStateRecord struct {
	CreatedAt time.Time
	ExpiresAt time.Time
}

func encodeResetCodeRecord(record *ResetCodeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(resetCodeRecordVersionV1)
	writeTime(&buf, record.CreatedAt)
	writeTime(&buf, record.ExpiresAt)
	if err := writeString(&buf, record.SubjectID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.Email); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeResetCodeRecord(data []byte) (*ResetCodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != resetCodeRecordVersionV1 {
		return nil, errRecordCorrupt
	}

	record := &ResetCodeRecord{}
	if record.CreatedAt, err = readTime(reader); err != nil {
		return nil, err
	}
	if record.ExpiresAt, err = readTime(reader); err != nil {
		return nil, err
	}
	if record.SubjectID, err = readString(reader); err != nil {
		return nil, err
	}
	if record.Email, err = readString(reader); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errRecordCorrupt
	}

	return record, nil
}

func encodeOAuthStateRecord(record *oauthStateRecord) []byte {
	var buf bytes.Buffer
	buf.WriteByte(oauthStateRecordVersionV1)
	writeTime(&buf, record.CreatedAt)
	writeTime(&buf, record.ExpiresAt)
	return buf.Bytes()
}

func decodeOAuthStateRecord(data []byte) (*oauthStateRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != oauthStateRecordVersionV1 {
		return nil, errRecordCorrupt
	}

	record := &oauthStateRecord{}
	if record.CreatedAt, err = readTime(reader); err != nil {
		return nil, err
	}
	if record.ExpiresAt, err = readTime(reader); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errRecordCorrupt
	}
	return record, nil
}

func writeTime(buf *bytes.Buffer, t time.Time) {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], uint64(t.UnixNano()))
	buf.Write(raw[:])
}

func readTime(reader *bytes.Reader) (time.Time, error) {
	var nanos int64
	if err := binary.Read(reader, binary.BigEndian, &nanos); err != nil {
		return time.Time{}, errRecordCorrupt
	}
	return time.Unix(0, nanos), nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return errors.New("store record field too long")
	}
	var size [2]byte
	binary.BigEndian.PutUint16(size[:], uint16(len(s)))
	buf.Write(size[:])
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var size uint16
	if err := binary.Read(reader, binary.BigEndian, &size); err != nil {
		return "", errRecordCorrupt
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", errRecordCorrupt
	}
	return string(raw), nil
}
