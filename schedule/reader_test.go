package schedule

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r Reader) ([]*Record, error) {
	t.Helper()
	var recs []*Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}

func TestOpen_XML(t *testing.T) {
	r, err := Open(filepath.Join("testdata", "sample.xml"))
	require.NoError(t, err)
	defer r.Close()

	recs, err := readAll(t, r)
	require.NoError(t, err)
	require.Len(t, recs, 4)

	assert.Equal(t, "23", recs[0].ItemNum)
	assert.Equal(t, "41.40", recs[0].ScheduleFee)
	assert.Equal(t, "01.11.2019", recs[0].ItemStartDate)
	assert.Equal(t, "30071", recs[1].ItemNum)
	assert.Equal(t, "43.50", recs[1].Benefit75)
	assert.Equal(t, "abc", recs[2].ItemNum)
	assert.Equal(t, 3, recs[3].Index)
}

func TestOpen_JSON(t *testing.T) {
	r, err := Open(filepath.Join("testdata", "sample.json"))
	require.NoError(t, err)
	defer r.Close()

	recs, err := readAll(t, r)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "23", recs[0].ItemNum)
	assert.Equal(t, "41.40", recs[0].ScheduleFee)
	assert.Equal(t, "10990", recs[1].ItemNum)
	assert.Equal(t, "7.70", recs[1].ScheduleFee)
	assert.Equal(t, "", recs[1].Benefit100)
}

func TestNewReader_BareJSONArray(t *testing.T) {
	r, err := NewReader(strings.NewReader(`  [{"ItemNum": 1, "Description": "a"}, {"ItemNum": "2", "Description": "b"}]`))
	require.NoError(t, err)

	recs, err := readAll(t, r)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "2", recs[1].ItemNum)
}

func TestNewReader_Malformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"whitespace only", "  \n\t"},
		{"unknown format", "ItemNum,Description\n23,consult"},
		{"wrong xml root", "<Schedule><Data/></Schedule>"},
		{"json without items", `{"Version": "1"}`},
		{"json items not array", `{"MBS_Items": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestReader_StructuralErrorMidStream(t *testing.T) {
	t.Run("truncated xml", func(t *testing.T) {
		r, err := Open(filepath.Join("testdata", "truncated.xml"))
		require.NoError(t, err)
		defer r.Close()

		recs, err := readAll(t, r)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Len(t, recs, 1, "records before the damage are still returned")
	})

	t.Run("broken json element", func(t *testing.T) {
		r, err := NewReader(strings.NewReader(`{"MBS_Items": [{"ItemNum": "1"}, {"ItemNum": ]}`))
		require.NoError(t, err)
		_, err = readAll(t, r)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.xml"))
	assert.ErrorIs(t, err, ErrMalformed)
}
