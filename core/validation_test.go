package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateCatalogItem(t *testing.T) {
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	valid := func() *CatalogItem {
		return &CatalogItem{
			Number:       10990,
			Description:  "Bulk billing incentive",
			ProviderType: ProviderGeneral,
			Fees:         Fees{Schedule: 8.2, Benefit100: 8.2},
			StartDate:    start,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*CatalogItem) *CatalogItem
		wantErr error
	}{
		{"valid", func(c *CatalogItem) *CatalogItem { return c }, nil},
		{"nil", func(*CatalogItem) *CatalogItem { return nil }, ErrInvalidCatalogItem},
		{"zero number", func(c *CatalogItem) *CatalogItem { c.Number = 0; return c }, ErrInvalidItemNumber},
		{"empty description", func(c *CatalogItem) *CatalogItem { c.Description = ""; return c }, ErrEmptyDescription},
		{"negative fee", func(c *CatalogItem) *CatalogItem { c.Fees.Benefit85 = -1; return c }, ErrNegativeFee},
		{"bad provider", func(c *CatalogItem) *CatalogItem { c.ProviderType = "vet"; return c }, ErrInvalidProviderType},
		{"end before start", func(c *CatalogItem) *CatalogItem { c.EndDate = start.AddDate(0, 0, -1); return c }, ErrInvalidDateRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCatalogItem(tt.mutate(valid()))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateCatalogItem() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateCatalogItem() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ValidateCatalogItem() error = %v, should wrap ErrValidation", err)
			}
		})
	}
}

func TestValidateJob(t *testing.T) {
	tests := []struct {
		name    string
		job     *Job
		wantErr bool
	}{
		{"nil", nil, true},
		{"missing id", &Job{Kind: JobKindEmbedding}, true},
		{"unknown kind", &Job{ID: "a", Kind: "reindex"}, true},
		{"ingest without source", &Job{ID: "a", Kind: JobKindXMLIngest}, true},
		{"batch too large", &Job{ID: "a", Kind: JobKindEmbedding, Payload: JobPayload{BatchSize: 101}}, true},
		{"embedding ok", &Job{ID: "a", Kind: JobKindEmbedding, Payload: JobPayload{BatchSize: 100}}, false},
		{"pipeline ok", &Job{ID: "a", Kind: JobKindFullPipeline, Payload: JobPayload{Source: "mbs.xml"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJob(tt.job)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateJob() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidJob) {
				t.Errorf("ValidateJob() error = %v, want ErrInvalidJob", err)
			}
		})
	}
}

func TestActiveAt(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	if !ActiveAt(start, end, start.AddDate(0, 6, 0)) {
		t.Error("expected active mid-range")
	}
	if ActiveAt(start, end, end.AddDate(0, 0, 1)) {
		t.Error("expected inactive after end")
	}
	if ActiveAt(start, time.Time{}, start.AddDate(0, 0, -1)) {
		t.Error("expected inactive before start")
	}
	if !ActiveAt(time.Time{}, time.Time{}, time.Now()) {
		t.Error("expected open-ended range to be active")
	}
}
