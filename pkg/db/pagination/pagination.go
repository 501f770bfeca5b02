package pagination

import (
	"encoding/base64"
	"encoding/json"
)

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=12" binding:"gte=1,lte=120"`
}

// Cursor points past the last row of a page. Ledger history pages are keyed
// by period, append-only journals by id; both newest first.
type Cursor struct {
	Period string `json:"period,omitempty"`
	ID     string `json:"id,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// Trim cuts a limit+1 fetch down to limit rows and builds the page info from
// the last row kept.
func Trim[T any](data []*T, limit int, extractCursor func(*T) Cursor) ([]*T, PageInfo, error) {
	if len(data) <= limit {
		return data, PageInfo{}, nil
	}
	data = data[:limit]
	token, err := EncodeCursor(extractCursor(data[len(data)-1]))
	if err != nil {
		return nil, PageInfo{}, err
	}
	return data, PageInfo{NextPageToken: token, HasMore: true}, nil
}
