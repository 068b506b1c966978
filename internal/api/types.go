// File path: internal/api/types.go
package api

import (
	"github.com/nicodishanthj/laptop-insights/internal/retriever"
)

type chatResponse struct {
	Answer   string              `json:"llm_answer"`
	Passages []retriever.Passage `json:"retrieved_context"`
}

type laptopQuery struct {
	Brand        string
	MinRating    *float64 `validate:"omitempty,gte=0,lte=5"`
	Availability string
}
