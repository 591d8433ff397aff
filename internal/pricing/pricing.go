// Package pricing computes one-off translation charges in minor currency
// units (US cents).
package pricing

const (
	mb = 1024 * 1024

	basePriceCents = 500 // $5.00 minimum
	perWordCents   = 2
	perPageCents   = 200

	surchargeOver5MB  = 150
	surchargeOver10MB = 300

	// rough heuristic when no word count is supplied
	avgBytesPerWord = 5
)

type Input struct {
	WordCount int64
	PageCount int64
	FileSize  int64
}

type Breakdown struct {
	BasePrice          int64 `json:"basePrice"`
	WordCost           int64 `json:"wordCost"`
	PageCost           int64 `json:"pageCost"`
	LargeFileSurcharge int64 `json:"largeFileSurcharge"`
	WordCount          int64 `json:"wordCount"`
	PageCount          int64 `json:"pageCount"`
}

type Quote struct {
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Breakdown Breakdown `json:"breakdown"`
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func estimateWordsFromFileSize(size int64) int64 {
	if size <= 0 {
		return 0
	}
	return size / avgBytesPerWord
}

// Calculate is a pure function: no side effects, negative inputs clamp to
// zero. Words are estimated from file size when no count is given.
func Calculate(in Input) Quote {
	words := clamp(in.WordCount)
	if words == 0 {
		words = estimateWordsFromFileSize(clamp(in.FileSize))
	}
	pages := clamp(in.PageCount)
	size := clamp(in.FileSize)

	var surcharge int64
	switch {
	case size > 10*mb:
		surcharge = surchargeOver10MB
	case size > 5*mb:
		surcharge = surchargeOver5MB
	}

	wordCost := words * perWordCents
	pageCost := pages * perPageCents

	amount := basePriceCents + wordCost + pageCost + surcharge
	if amount < basePriceCents {
		amount = basePriceCents
	}

	return Quote{
		Amount:   amount,
		Currency: "usd",
		Breakdown: Breakdown{
			BasePrice:          basePriceCents,
			WordCost:           wordCost,
			PageCost:           pageCost,
			LargeFileSurcharge: surcharge,
			WordCount:          words,
			PageCount:          pages,
		},
	}
}
