package httpapi

import (
	"time"

	"github.com/poiesic/schedex"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/jobs"
	"github.com/poiesic/schedex/search"
)

type feesDTO struct {
	Schedule   float64 `json:"schedule"`
	Benefit75  float64 `json:"benefit75"`
	Benefit85  float64 `json:"benefit85"`
	Benefit100 float64 `json:"benefit100"`
}

type itemDTO struct {
	Number           core.ItemNumber   `json:"itemNumber"`
	Description      string            `json:"description"`
	ShortDescription string            `json:"shortDescription,omitempty"`
	Category         string            `json:"category"`
	Group            string            `json:"group,omitempty"`
	SubGroup         string            `json:"subGroup,omitempty"`
	ProviderType     core.ProviderType `json:"providerType"`
	Fees             feesDTO           `json:"fees"`
	Active           bool              `json:"active"`
	StartDate        *time.Time        `json:"startDate,omitempty"`
	EndDate          *time.Time        `json:"endDate,omitempty"`
	HasEmbedding     bool              `json:"hasEmbedding"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func newItemDTO(item *core.CatalogItem) itemDTO {
	return itemDTO{
		Number:           item.Number,
		Description:      item.Description,
		ShortDescription: item.ShortDescription,
		Category:         item.Category,
		Group:            item.Group,
		SubGroup:         item.SubGroup,
		ProviderType:     item.ProviderType,
		Fees: feesDTO{
			Schedule:   item.Fees.Schedule,
			Benefit75:  item.Fees.Benefit75,
			Benefit85:  item.Fees.Benefit85,
			Benefit100: item.Fees.Benefit100,
		},
		Active:       item.Active,
		StartDate:    optionalTime(item.StartDate),
		EndDate:      optionalTime(item.EndDate),
		HasEmbedding: item.HasEmbedding() || !item.EmbeddedAt.IsZero(),
		UpdatedAt:    item.UpdatedAt,
	}
}

type resultDTO struct {
	Item          itemDTO          `json:"item"`
	Score         float64          `json:"score"`
	TextScore     float64          `json:"textScore"`
	SemanticScore float64          `json:"semanticScore"`
	Mode          search.Mode      `json:"mode"`
	MatchType     search.MatchType `json:"matchType"`
	Highlight     string           `json:"highlight,omitempty"`
}

func newResultDTOs(results []*search.Result) []resultDTO {
	out := make([]resultDTO, 0, len(results))
	for _, r := range results {
		out = append(out, resultDTO{
			Item:          newItemDTO(r.Item),
			Score:         r.Score,
			TextScore:     r.TextScore,
			SemanticScore: r.SemanticScore,
			Mode:          r.Mode,
			MatchType:     r.MatchType,
			Highlight:     r.Highlight,
		})
	}
	return out
}

type searchResponseDTO struct {
	Results          []resultDTO `json:"results"`
	Total            int         `json:"total"`
	HasMore          bool        `json:"hasMore"`
	RequestedMode    search.Mode `json:"requestedMode"`
	EffectiveMode    search.Mode `json:"effectiveMode"`
	ProcessingTimeMs int64       `json:"processingTimeMs"`
}

func newSearchResponseDTO(resp *search.Response) searchResponseDTO {
	return searchResponseDTO{
		Results:          newResultDTOs(resp.Results),
		Total:            resp.Total,
		HasMore:          resp.HasMore,
		RequestedMode:    resp.RequestedMode,
		EffectiveMode:    resp.EffectiveMode,
		ProcessingTimeMs: resp.ProcessingTime.Milliseconds(),
	}
}

type smartResponseDTO struct {
	ExactMatches     []resultDTO     `json:"exactMatches"`
	RelatedMatches   []resultDTO     `json:"relatedMatches"`
	Total            int             `json:"total"`
	HasMore          bool            `json:"hasMore"`
	RequestedMode    search.Mode     `json:"requestedMode"`
	EffectiveMode    search.Mode     `json:"effectiveMode"`
	Intent           search.Intent   `json:"intent"`
	ItemNumber       core.ItemNumber `json:"itemNumber,omitempty"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
}

func newSmartResponseDTO(resp *search.SmartResponse) smartResponseDTO {
	return smartResponseDTO{
		ExactMatches:     newResultDTOs(resp.ExactMatches),
		RelatedMatches:   newResultDTOs(resp.RelatedMatches),
		Total:            resp.Total,
		HasMore:          resp.HasMore,
		RequestedMode:    resp.RequestedMode,
		EffectiveMode:    resp.EffectiveMode,
		Intent:           resp.Intent,
		ItemNumber:       resp.ItemNumber,
		ProcessingTimeMs: resp.ProcessingTime.Milliseconds(),
	}
}

type filterCountDTO struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type filterOptionsDTO struct {
	Categories     []filterCountDTO `json:"categories"`
	ProviderTypes  []filterCountDTO `json:"providerTypes"`
	AvailableModes []search.Mode    `json:"availableModes"`
}

func newFilterCounts(counts []search.FilterCount) []filterCountDTO {
	out := make([]filterCountDTO, len(counts))
	for i, fc := range counts {
		out[i] = filterCountDTO{Value: fc.Value, Count: fc.Count}
	}
	return out
}

func newFilterOptionsDTO(opts *search.FilterOptions) filterOptionsDTO {
	return filterOptionsDTO{
		Categories:     newFilterCounts(opts.Categories),
		ProviderTypes:  newFilterCounts(opts.ProviderTypes),
		AvailableModes: opts.AvailableModes,
	}
}

type queueStatsDTO struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

func newQueueStatsDTO(s *core.QueueStats) queueStatsDTO {
	return queueStatsDTO{
		Queued:    s.Queued,
		Running:   s.Running,
		Completed: s.Completed,
		Failed:    s.Failed,
		Total:     s.Total,
	}
}

type healthDTO struct {
	Status            string        `json:"status"`
	SemanticAvailable bool          `json:"semanticAvailable"`
	Items             int           `json:"items"`
	ActiveItems       int           `json:"activeItems"`
	EmbeddedItems     int           `json:"embeddedItems"`
	Queue             queueStatsDTO `json:"queue"`
	CheckedAt         time.Time     `json:"checkedAt"`
}

func newHealthDTO(h *schedex.Health) healthDTO {
	return healthDTO{
		Status:            h.Status,
		SemanticAvailable: h.SemanticAvailable,
		Items:             h.Items,
		ActiveItems:       h.ActiveItems,
		EmbeddedItems:     h.EmbeddedItems,
		Queue:             newQueueStatsDTO(&h.Queue),
		CheckedAt:         h.CheckedAt,
	}
}

type countsDTO struct {
	Parsed      int `json:"parsed"`
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Embedded    int `json:"embedded"`
	Deactivated int `json:"deactivated"`
}

func newCountsDTO(c core.IngestionCounts) countsDTO {
	return countsDTO(c)
}

type jobDTO struct {
	ID              string         `json:"id"`
	Kind            core.JobKind   `json:"kind"`
	Status          core.JobStatus `json:"status"`
	Source          string         `json:"source,omitempty"`
	EnqueuedAt      time.Time      `json:"enqueuedAt"`
	StartedAt       *time.Time     `json:"startedAt,omitempty"`
	FinishedAt      *time.Time     `json:"finishedAt,omitempty"`
	CancelRequested bool           `json:"cancelRequested,omitempty"`
	LogID           string         `json:"logId,omitempty"`
	Summary         countsDTO      `json:"summary"`
	Error           string         `json:"error,omitempty"`
}

func newJobDTO(j *core.Job) jobDTO {
	return jobDTO{
		ID:              j.ID,
		Kind:            j.Kind,
		Status:          j.Status,
		Source:          j.Payload.Source,
		EnqueuedAt:      j.EnqueuedAt,
		StartedAt:       optionalTime(j.StartedAt),
		FinishedAt:      optionalTime(j.FinishedAt),
		CancelRequested: j.CancelRequested,
		LogID:           j.LogID,
		Summary:         newCountsDTO(j.Summary),
		Error:           j.Error,
	}
}

type ingestionLogDTO struct {
	ID         string         `json:"id"`
	JobID      string         `json:"jobId"`
	Kind       core.JobKind   `json:"kind"`
	Source     string         `json:"source,omitempty"`
	Status     core.JobStatus `json:"status"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Counts     countsDTO      `json:"counts"`
	Errors     []string       `json:"errors,omitempty"`
}

type logPageDTO struct {
	Logs    []ingestionLogDTO `json:"logs"`
	Total   int               `json:"total"`
	HasMore bool              `json:"hasMore"`
}

func newLogPageDTO(page *jobs.LogPage) logPageDTO {
	logs := make([]ingestionLogDTO, 0, len(page.Logs))
	for _, l := range page.Logs {
		logs = append(logs, ingestionLogDTO{
			ID:         l.ID,
			JobID:      l.JobID,
			Kind:       l.Kind,
			Source:     l.Source,
			Status:     l.Status,
			StartedAt:  l.StartedAt,
			FinishedAt: optionalTime(l.FinishedAt),
			Counts:     newCountsDTO(l.Counts),
			Errors:     l.Errors,
		})
	}
	return logPageDTO{Logs: logs, Total: page.Total, HasMore: page.HasMore}
}

// Request bodies.

type ingestRequest struct {
	Source         string `json:"source"`
	ForceReprocess bool   `json:"forceReprocess"`
}

type embeddingRequest struct {
	ItemNumbers []core.ItemNumber `json:"itemNumbers"`
	BatchSize   int               `json:"batchSize"`
	Force       bool              `json:"force"`
}

type jobQueuedDTO struct {
	JobID string `json:"jobId"`
}

type cleanedDTO struct {
	Removed int `json:"removed"`
}

type errorDTO struct {
	Error string `json:"error"`
}
