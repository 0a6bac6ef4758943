package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/schedex/core"
)

// shortDescriptionLimit caps the derived short description, in runes.
const shortDescriptionLimit = 120

var dateLayouts = []string{"02.01.2006", time.DateOnly, "02/01/2006"}

// ToItem converts and validates a raw record. Items whose end date is before
// now are returned inactive.
func ToItem(rec *Record, now time.Time) (*core.CatalogItem, error) {
	number, err := core.ParseItemNumber(rec.ItemNum)
	if err != nil {
		return nil, err
	}

	providerType, err := core.ParseProviderType(rec.ProviderType)
	if err != nil {
		return nil, err
	}

	var fees core.Fees
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"ScheduleFee", rec.ScheduleFee, &fees.Schedule},
		{"Benefit75", rec.Benefit75, &fees.Benefit75},
		{"Benefit85", rec.Benefit85, &fees.Benefit85},
		{"Benefit100", rec.Benefit100, &fees.Benefit100},
	} {
		if *f.dst, err = parseAmount(f.raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrInvalidCatalogItem, f.name, err)
		}
	}

	start, err := parseDate(rec.ItemStartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: ItemStartDate: %v", core.ErrInvalidCatalogItem, err)
	}
	end, err := parseDate(rec.ItemEndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: ItemEndDate: %v", core.ErrInvalidCatalogItem, err)
	}

	description := collapseSpace(rec.Description)
	item := &core.CatalogItem{
		Number:           number,
		Description:      description,
		ShortDescription: ShortDescription(description),
		Category:         strings.TrimSpace(rec.Category),
		Group:            strings.TrimSpace(rec.Group),
		SubGroup:         strings.TrimSpace(rec.SubGroup),
		ProviderType:     providerType,
		Fees:             fees,
		Active:           end.IsZero() || !now.After(end),
		StartDate:        start,
		EndDate:          end,
	}
	if err := core.ValidateCatalogItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

// ShortDescription returns the first sentence of desc, cut at a word
// boundary if it is still too long.
func ShortDescription(desc string) string {
	if i := strings.Index(desc, ". "); i >= 0 {
		desc = desc[:i]
	}
	desc = strings.TrimSuffix(desc, ".")
	if utf8.RuneCountInString(desc) <= shortDescriptionLimit {
		return desc
	}
	runes := []rune(desc)[:shortDescriptionLimit]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
