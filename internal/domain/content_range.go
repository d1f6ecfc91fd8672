package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ContentRange is a parsed "bytes start-end/total" header. Total is -1 for "*".
type ContentRange struct {
	Start int64
	End   int64
	Total int64
}

// ParseContentRange parses a Content-Range header value.
func ParseContentRange(header string) (ContentRange, error) {
	value, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes ")
	if !ok {
		return ContentRange{}, fmt.Errorf("invalid Content-Range unit: %q", header)
	}

	span, total, ok := strings.Cut(value, "/")
	if !ok {
		return ContentRange{}, fmt.Errorf("invalid Content-Range format: %q", header)
	}
	first, last, ok := strings.Cut(span, "-")
	if !ok {
		return ContentRange{}, fmt.Errorf("invalid Content-Range format: %q", header)
	}

	var (
		cr  ContentRange
		err error
	)
	if cr.Start, err = strconv.ParseInt(first, 10, 64); err != nil {
		return ContentRange{}, fmt.Errorf("invalid start byte: %w", err)
	}
	if cr.End, err = strconv.ParseInt(last, 10, 64); err != nil {
		return ContentRange{}, fmt.Errorf("invalid end byte: %w", err)
	}
	if cr.End < cr.Start {
		return ContentRange{}, fmt.Errorf("invalid Content-Range span: %q", header)
	}

	if total == "*" {
		cr.Total = -1
	} else if cr.Total, err = strconv.ParseInt(total, 10, 64); err != nil {
		return ContentRange{}, fmt.Errorf("invalid total bytes: %w", err)
	}

	return cr, nil
}
