package search

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/schedex/core"
)

// Mode selects how results are ranked.
type Mode string

const (
	ModeText     Mode = "text"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

// Modes lists every search mode.
var Modes = []Mode{ModeText, ModeSemantic, ModeHybrid}

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeHybrid, nil
	case ModeText, ModeSemantic, ModeHybrid:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, s)
}

// SortKey orders results.
type SortKey string

const (
	SortRelevance  SortKey = "relevance"
	SortFeeAsc     SortKey = "fee_asc"
	SortFeeDesc    SortKey = "fee_desc"
	SortItemNumber SortKey = "item_number"
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortRelevance, nil
	case SortRelevance, SortFeeAsc, SortFeeDesc, SortItemNumber:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown sort key %q", ErrInvalidRequest, s)
}

// MatchType tags how a result matched the query.
type MatchType string

const (
	MatchExact   MatchType = "exact"   // the item number was named
	MatchPartial MatchType = "partial" // some query terms, or semantic similarity only
	MatchText    MatchType = "text"    // every query term found lexically
)

const (
	MaxQueryLength = 500
	DefaultLimit   = 20
	MaxLimit       = 100
)

// Filters restrict results. They apply as a hard AND.
type Filters struct {
	ProviderType    core.ProviderType
	Category        string
	MinFee          *float64
	MaxFee          *float64
	IncludeInactive bool
}

// Validate normalizes the provider type and checks the fee range.
func (f *Filters) Validate() error {
	if f.ProviderType != "" {
		pt, err := core.ParseProviderType(string(f.ProviderType))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		f.ProviderType = pt
	}
	f.Category = strings.TrimSpace(f.Category)
	if f.MinFee != nil && *f.MinFee < 0 {
		return fmt.Errorf("%w: min fee must not be negative", ErrInvalidRequest)
	}
	if f.MaxFee != nil && *f.MaxFee < 0 {
		return fmt.Errorf("%w: max fee must not be negative", ErrInvalidRequest)
	}
	if f.MinFee != nil && f.MaxFee != nil && *f.MinFee > *f.MaxFee {
		return fmt.Errorf("%w: %.2f > %.2f", ErrFeeRange, *f.MinFee, *f.MaxFee)
	}
	return nil
}

// Match reports whether item passes every filter.
func (f *Filters) Match(item *core.CatalogItem) bool {
	if !f.IncludeInactive && !item.Active {
		return false
	}
	if f.ProviderType != "" && item.ProviderType != f.ProviderType {
		return false
	}
	if f.Category != "" && !strings.EqualFold(item.Category, f.Category) {
		return false
	}
	if f.MinFee != nil && item.Fees.Schedule < *f.MinFee {
		return false
	}
	if f.MaxFee != nil && item.Fees.Schedule > *f.MaxFee {
		return false
	}
	return true
}

// Request is a search query.
type Request struct {
	Query   string
	Mode    Mode
	Filters Filters
	Limit   int
	Offset  int
	SortBy  SortKey
}

// Normalize applies defaults and validates r in place.
func (r *Request) Normalize() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if n := utf8.RuneCountInString(r.Query); n > MaxQueryLength {
		return fmt.Errorf("%w: query is %d characters, max %d", ErrInvalidRequest, n, MaxQueryLength)
	}

	var err error
	if r.Mode, err = ParseMode(string(r.Mode)); err != nil {
		return err
	}
	if r.SortBy, err = ParseSortKey(string(r.SortBy)); err != nil {
		return err
	}
	if r.Limit == 0 {
		r.Limit = DefaultLimit
	}
	if r.Limit < 1 || r.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d, got %d", ErrInvalidRequest, MaxLimit, r.Limit)
	}
	if r.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidRequest, r.Offset)
	}
	return r.Filters.Validate()
}

// SmartRequest is a sectioned search. Intent, ItemNumber and TextQuery
// override what the query alone would classify as.
type SmartRequest struct {
	Request
	Intent     Intent
	ItemNumber core.ItemNumber
	TextQuery  string
}

func (r *SmartRequest) Normalize() error {
	if r.Query == "" && r.ItemNumber != 0 {
		r.Query = r.ItemNumber.String()
		if t := strings.TrimSpace(r.TextQuery); t != "" {
			r.Query += " " + t
		}
	}
	if err := r.Request.Normalize(); err != nil {
		return err
	}
	var err error
	r.Intent, err = ParseIntent(string(r.Intent))
	return err
}

// Result is one ranked item.
type Result struct {
	Item          *core.CatalogItem
	Score         float64
	TextScore     float64
	SemanticScore float64
	Mode          Mode
	MatchType     MatchType
	Highlight     string
}

// Response is the outcome of Search.
type Response struct {
	Results        []*Result
	Total          int
	HasMore        bool
	RequestedMode  Mode
	EffectiveMode  Mode
	ProcessingTime time.Duration
}

// SmartResponse is the outcome of SmartSearch.
type SmartResponse struct {
	ExactMatches   []*Result
	RelatedMatches []*Result
	Total          int
	HasMore        bool
	RequestedMode  Mode
	EffectiveMode  Mode
	Intent         Intent
	ItemNumber     core.ItemNumber
	ProcessingTime time.Duration
}

// FilterCount is a filter value and how many items carry it.
type FilterCount struct {
	Value string
	Count int
}

// FilterOptions lists the values a client can filter on.
type FilterOptions struct {
	Categories     []FilterCount
	ProviderTypes  []FilterCount
	AvailableModes []Mode
}
