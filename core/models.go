package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ItemNumber identifies a catalog item. It is positive and never changes once
// an item has been created.
type ItemNumber uint64

// maxItemNumberDigits bounds the significant digits accepted as an item number.
const maxItemNumberDigits = 8

// ParseItemNumber parses s as an item number. Surrounding whitespace and
// leading zeros are ignored, so "010990" and "10990" are the same item.
func ParseItemNumber(s string) (ItemNumber, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty item number", ErrInvalidItemNumber)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidItemNumber, s)
		}
	}
	digits := strings.TrimLeft(s, "0")
	if digits == "" {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidItemNumber)
	}
	if len(digits) > maxItemNumberDigits {
		return 0, fmt.Errorf("%w: %q has too many digits", ErrInvalidItemNumber, s)
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidItemNumber, err)
	}
	return ItemNumber(n), nil
}

func (n ItemNumber) String() string {
	return strconv.FormatUint(uint64(n), 10)
}

// ContentHash returns a 64-bit blake2b digest of text.
func ContentHash(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// ProviderType classifies which kind of practitioner may bill an item.
type ProviderType string

const (
	ProviderGeneral      ProviderType = "general"
	ProviderSpecialist   ProviderType = "specialist"
	ProviderAlliedHealth ProviderType = "allied_health"
	ProviderDental       ProviderType = "dental"
	ProviderOptometry    ProviderType = "optometry"
	ProviderOther        ProviderType = "other"
)

// ProviderTypes lists every valid provider type in display order.
var ProviderTypes = []ProviderType{
	ProviderGeneral,
	ProviderSpecialist,
	ProviderAlliedHealth,
	ProviderDental,
	ProviderOptometry,
	ProviderOther,
}

var providerCodes = map[string]ProviderType{
	"g": ProviderGeneral,
	"s": ProviderSpecialist,
	"a": ProviderAlliedHealth,
	"d": ProviderDental,
	"o": ProviderOptometry,
	"x": ProviderOther,
}

// ParseProviderType accepts either the full provider type name or the single
// letter code used by schedule exports. An empty value maps to ProviderOther.
func ParseProviderType(s string) (ProviderType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ProviderOther, nil
	}
	if pt, ok := providerCodes[s]; ok {
		return pt, nil
	}
	for _, pt := range ProviderTypes {
		if string(pt) == s {
			return pt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidProviderType, s)
}

// Fees carries the schedule fee and the benefit tiers paid against it.
type Fees struct {
	Schedule   float64
	Benefit75  float64
	Benefit85  float64
	Benefit100 float64
}

type CatalogItem struct {
	Number           ItemNumber
	Description      string
	ShortDescription string
	Category         string
	Group            string
	SubGroup         string
	ProviderType     ProviderType
	Fees             Fees
	Active           bool
	StartDate        time.Time
	EndDate          time.Time // zero when open-ended
	Checksum         uint64    // hash of source-derived content, see SourceChecksum
	Vector           []float32 // normalized embedding, nil until embedded
	EmbeddedAt       time.Time
	InsertedAt       time.Time
	UpdatedAt        time.Time
}

// SourceChecksum hashes every field that comes from the schedule source.
// Storage-managed fields (vector, timestamps) are not part of it.
func (c *CatalogItem) SourceChecksum() uint64 {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%s|%s|%s|%s|%s|%.2f|%.2f|%.2f|%.2f|%t|%s|%s",
		c.Number, c.Description, c.ShortDescription, c.Category, c.Group, c.SubGroup,
		c.ProviderType, c.Fees.Schedule, c.Fees.Benefit75, c.Fees.Benefit85, c.Fees.Benefit100,
		c.Active, formatDate(c.StartDate), formatDate(c.EndDate))
	return ContentHash(b.String())
}

// EmbeddingText is the text sent to the embedding provider for this item.
func (c *CatalogItem) EmbeddingText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Item %d", c.Number)
	if c.Category != "" {
		fmt.Fprintf(&b, " (category %s)", c.Category)
	}
	b.WriteString(": ")
	if c.ShortDescription != "" && c.ShortDescription != c.Description {
		b.WriteString(c.ShortDescription)
		b.WriteString(". ")
	}
	b.WriteString(c.Description)
	return b.String()
}

// HasEmbedding reports whether the item can take part in semantic ranking.
func (c *CatalogItem) HasEmbedding() bool {
	return len(c.Vector) > 0
}

// Projection returns a copy of the item without its embedding vector.
func (c *CatalogItem) Projection() *CatalogItem {
	cp := *c
	cp.Vector = nil
	return &cp
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

// SimilarityMatch is a single vector index hit. Score is raw cosine
// similarity in [-1, 1].
type SimilarityMatch struct {
	Number ItemNumber
	Score  float32
}
