package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/poiesic/schedex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var convertNow = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

func TestToItem(t *testing.T) {
	rec := &Record{
		ItemNum:       " 0023 ",
		Description:   "Professional attendance   by a general practitioner. Includes history.",
		Category:      " 1 ",
		Group:         "A1",
		ProviderType:  "G",
		ScheduleFee:   "41.40",
		Benefit100:    "$41.40",
		ItemStartDate: "01.11.2019",
	}

	item, err := ToItem(rec, convertNow)
	require.NoError(t, err)
	assert.Equal(t, core.ItemNumber(23), item.Number)
	assert.Equal(t, "Professional attendance by a general practitioner. Includes history.", item.Description)
	assert.Equal(t, "Professional attendance by a general practitioner", item.ShortDescription)
	assert.Equal(t, "1", item.Category)
	assert.Equal(t, core.ProviderGeneral, item.ProviderType)
	assert.Equal(t, core.Fees{Schedule: 41.40, Benefit100: 41.40}, item.Fees)
	assert.Equal(t, time.Date(2019, 11, 1, 0, 0, 0, 0, time.UTC), item.StartDate)
	assert.True(t, item.EndDate.IsZero())
	assert.True(t, item.Active)
}

func TestToItem_EndedItemIsInactive(t *testing.T) {
	item, err := ToItem(&Record{ItemNum: "104", Description: "x", ItemEndDate: "31.12.2015"}, convertNow)
	require.NoError(t, err)
	assert.False(t, item.Active)

	item, err = ToItem(&Record{ItemNum: "104", Description: "x", ItemEndDate: "2027-01-01"}, convertNow)
	require.NoError(t, err)
	assert.True(t, item.Active)
}

func TestToItem_Invalid(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{"non-numeric number", Record{ItemNum: "abc", Description: "x"}},
		{"zero number", Record{ItemNum: "000", Description: "x"}},
		{"missing description", Record{ItemNum: "23"}},
		{"bad fee", Record{ItemNum: "23", Description: "x", ScheduleFee: "forty"}},
		{"negative fee", Record{ItemNum: "23", Description: "x", Benefit85: "-1"}},
		{"unknown provider", Record{ItemNum: "23", Description: "x", ProviderType: "Q"}},
		{"bad date", Record{ItemNum: "23", Description: "x", ItemStartDate: "yesterday"}},
		{"end before start", Record{ItemNum: "23", Description: "x", ItemStartDate: "01.01.2020", ItemEndDate: "01.01.2019"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToItem(&tt.rec, convertNow)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestShortDescription(t *testing.T) {
	long := strings.Repeat("word ", 40)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"first sentence", "Consultation. More text.", "Consultation"},
		{"single sentence with period", "Consultation.", "Consultation"},
		{"no period", "Consultation at home", "Consultation at home"},
		{"decimal kept", "Fee of 2.5 units", "Fee of 2.5 units"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortDescription(tt.in))
		})
	}

	t.Run("long text cut at word boundary", func(t *testing.T) {
		got := ShortDescription(long)
		assert.True(t, strings.HasSuffix(got, "word..."))
		assert.LessOrEqual(t, len([]rune(got)), shortDescriptionLimit+3)
	})
}
