package schedule

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Record is one raw item entry as it appears in a schedule export. All values
// are kept as text; conversion and validation happen in ToItem.
type Record struct {
	Index int `xml:"-" json:"-"` // zero-based position in the source

	ItemNum       string `xml:"ItemNum"`
	Description   string `xml:"Description"`
	Category      string `xml:"Category"`
	Group         string `xml:"Group"`
	SubGroup      string `xml:"SubGroup"`
	SubHeading    string `xml:"SubHeading"`
	ProviderType  string `xml:"ProviderType"`
	ScheduleFee   string `xml:"ScheduleFee"`
	Benefit75     string `xml:"Benefit75"`
	Benefit85     string `xml:"Benefit85"`
	Benefit100    string `xml:"Benefit100"`
	ItemStartDate string `xml:"ItemStartDate"`
	ItemEndDate   string `xml:"ItemEndDate"`
}

// jsonRecord mirrors the MBS_Items JSON export. Exports disagree on whether
// item numbers and fees are numbers or strings, so both are accepted.
type jsonRecord struct {
	ItemNum       flexText `json:"ItemNum"`
	Description   string   `json:"Description"`
	Category      string   `json:"Category"`
	Group         string   `json:"Group"`
	SubGroup      string   `json:"SubGroup"`
	SubHeading    string   `json:"SubHeading"`
	ProviderType  string   `json:"ProviderType"`
	ScheduleFee   flexText `json:"ScheduleFee"`
	Benefit75     flexText `json:"Benefit75"`
	Benefit85     flexText `json:"Benefit85"`
	Benefit100    flexText `json:"Benefit100"`
	ItemStartDate string   `json:"ItemStartDate"`
	ItemEndDate   string   `json:"ItemEndDate"`
}

// flexText accepts a JSON string, number or null as text.
type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexText(s)
	default:
		*f = flexText(data)
	}
	return nil
}

func (f flexText) String() string { return string(f) }

func (j *jsonRecord) record(index int) *Record {
	return &Record{
		Index:         index,
		ItemNum:       j.ItemNum.String(),
		Description:   j.Description,
		Category:      j.Category,
		Group:         j.Group,
		SubGroup:      j.SubGroup,
		SubHeading:    j.SubHeading,
		ProviderType:  j.ProviderType,
		ScheduleFee:   j.ScheduleFee.String(),
		Benefit75:     j.Benefit75.String(),
		Benefit85:     j.Benefit85.String(),
		Benefit100:    j.Benefit100.String(),
		ItemStartDate: j.ItemStartDate,
		ItemEndDate:   j.ItemEndDate,
	}
}

// Key returns the trimmed item number text, used to report bad records.
func (r *Record) Key() string {
	return strings.TrimSpace(r.ItemNum)
}
