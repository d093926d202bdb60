package service

import (
	"errors"
	"math"
	"strconv"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*MaxPageSize inside int.
	MaxPage = math.MaxInt / MaxPageSize
)

// Page is a 1-based pagination window.
type Page struct {
	Page     int
	PageSize int
}

// NewPage clamps page and size: values below 1 fall back to the defaults,
// page is capped at MaxPage and size at MaxPageSize.
func NewPage(page, size int) Page {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Page: page, PageSize: size}
}

// ParsePage builds a Page from raw query values. Absent or non-numeric
// values fall back to the defaults; numbers too large for int are clamped.
func ParsePage(rawPage, rawSize string) Page {
	return NewPage(parseBound(rawPage, DefaultPage), parseBound(rawSize, DefaultPageSize))
}

func parseBound(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err == nil {
		return n
	}
	// Atoi saturates out-of-range input; keep the sign, let NewPage clamp.
	if errors.Is(err, strconv.ErrRange) && n > 0 {
		return n
	}
	return fallback
}

// Normalize returns p with the same clamping as NewPage applied.
func (p Page) Normalize() Page {
	return NewPage(p.Page, p.PageSize)
}

func (p Page) Limit() int {
	return p.Normalize().PageSize
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}
