package data

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrUnknownKind      = errors.New("unknown violation kind")
	ErrMissingSessionID = errors.New("missing exam or session id")
)

// rawViolation tolerates the timestamp arriving either as epoch millis or
// as an RFC3339 string, depending on the client build.
type rawViolation struct {
	UjianID       string          `json:"ujianId"`
	SiswaDetailID string          `json:"siswaDetailId"`
	Kind          ViolationKind   `json:"type"`
	Timestamp     json.RawMessage `json:"timestamp"`
}

// ParseViolation unmarshals an inbound violation message and normalizes its
// timestamp to epoch milliseconds. Identifiers from the URL take precedence
// over the body when both are present; pass empty strings to trust the body.
func ParseViolation(payload []byte, ujianID, siswaDetailID string) (*ViolationEvent, error) {
	var raw rawViolation
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errors.Wrap(err, "unmarshal violation")
	}

	ev := ViolationEvent{
		UjianID:       raw.UjianID,
		SiswaDetailID: raw.SiswaDetailID,
		Kind:          raw.Kind,
	}
	if ujianID != "" {
		ev.UjianID = ujianID
	}
	if siswaDetailID != "" {
		ev.SiswaDetailID = siswaDetailID
	}

	if ev.UjianID == "" || ev.SiswaDetailID == "" {
		return nil, ErrMissingSessionID
	}
	if !ev.Kind.Valid() {
		return nil, errors.Wrapf(ErrUnknownKind, "%q", raw.Kind)
	}

	ev.Timestamp = parseTimestamp(raw.Timestamp)
	return &ev, nil
}

func parseTimestamp(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return time.Now().UnixMilli()
	}

	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil && millis > 0 {
		return millis
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
			return t.UnixMilli()
		}
	}

	return time.Now().UnixMilli()
}
