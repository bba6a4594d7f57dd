package biz

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"farmlokal/internal/model"
)

// CursorKey is the decoded continuation point of a keyset-paginated query:
// the (sort-field value, tie-break id) pair of the last row returned.
type CursorKey struct {
	Value interface{}
	ID    int64
}

// cursorPayload is the wire format of a cursor. The sort-field value is kept
// as raw JSON so it can be decoded according to the requested sort field;
// cursors are not portable across sort fields.
type cursorPayload struct {
	Value json.RawMessage `json:"v"`
	ID    int64           `json:"id"`
}

// encodeCursor builds an opaque continuation token from the last row of a
// page. The token carries only the sort-field value and the row id, both of
// which are already public in the row itself.
func encodeCursor(p *model.Product, sortBy string) (string, error) {
	var value interface{}
	switch sortBy {
	case SortByPrice:
		value = p.Price
	case SortByCreatedAt:
		value = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	case SortByName:
		value = p.Name
	default:
		return "", fmt.Errorf("cannot encode cursor for sort field %q", sortBy)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor value: %w", err)
	}

	payload, err := json.Marshal(cursorPayload{Value: raw, ID: p.ID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// decodeCursor reverses encodeCursor for the given sort field. Decoding must
// reproduce exactly the encoded pair; any malformed or mismatched token is a
// validation failure, never retried.
func decodeCursor(cursor, sortBy string) (*CursorKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrInvalidCursor
	}
	if payload.ID <= 0 || len(payload.Value) == 0 {
		return nil, ErrInvalidCursor
	}

	key := &CursorKey{ID: payload.ID}

	switch sortBy {
	case SortByPrice:
		var v float64
		if err := json.Unmarshal(payload.Value, &v); err != nil {
			return nil, ErrInvalidCursor
		}
		key.Value = v
	case SortByCreatedAt:
		var s string
		if err := json.Unmarshal(payload.Value, &s); err != nil {
			return nil, ErrInvalidCursor
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, ErrInvalidCursor
		}
		key.Value = t
	case SortByName:
		var s string
		if err := json.Unmarshal(payload.Value, &s); err != nil {
			return nil, ErrInvalidCursor
		}
		key.Value = s
	default:
		return nil, ErrInvalidSortField
	}

	return key, nil
}
