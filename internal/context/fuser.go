// File path: internal/context/fuser.go
package context

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nicodishanthj/laptop-insights/internal/facts"
	"github.com/nicodishanthj/laptop-insights/internal/retriever"
)

const (
	StaticHeader       = "\n STATIC SPECIFICATIONS CONTEXT \n"
	DynamicHeader      = "\n--- CURRENT DYNAMIC DATA ---\n"
	NoSpecsMarker      = "No relevant specifications found.\n"
	NoDynamicMarker    = "No dynamic data retrieved.\n"
	SectionPlaceholder = "N/A"
)

// Config tunes rendering. The zero value renders passages untruncated.
type Config struct {
	// MaxPassageRunes truncates each passage body; zero disables it.
	MaxPassageRunes int
}

// Fuser renders retrieved passages and dynamic facts into one context block.
// It holds no state beyond its configuration.
type Fuser struct {
	config Config
}

func NewFuser(cfg Config) *Fuser {
	return &Fuser{config: cfg}
}

// Fuse renders the static section followed by the dynamic section. Facts
// are rendered in slice order.
func (f *Fuser) Fuse(passages []retriever.Passage, dynamic []facts.Fact) string {
	var b strings.Builder
	b.WriteString(StaticHeader)
	if len(passages) == 0 {
		b.WriteString(NoSpecsMarker)
	}
	for i, p := range passages {
		section := strings.TrimSpace(p.SectionTitle)
		if section == "" {
			section = SectionPlaceholder
		}
		b.WriteString("Context ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(" (Source: ")
		b.WriteString(p.SKU)
		b.WriteString(", Section: ")
		b.WriteString(section)
		b.WriteString("):\n  Content: ")
		b.WriteString(f.truncate(p.Text))
		b.WriteString("\n")
		if len(p.Citations) > 0 {
			b.WriteString("  Citations: ")
			b.WriteString(formatCitations(p.Citations))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(DynamicHeader)
	if len(dynamic) == 0 {
		b.WriteString(NoDynamicMarker)
	}
	for _, fact := range dynamic {
		b.WriteString("For '" + fact.SKU + "':\n")
		b.WriteString("  - Latest Price: " + orNA(fact.Price) + "\n")
		b.WriteString("  - Availability: " + orNA(fact.Availability) + "\n")
		b.WriteString("  - Average Rating: " + orNA(fact.Rating) + "\n")
		b.WriteString("  - Vendor: " + orNA(fact.Vendor) + "\n")
		b.WriteString("  - Shipping ETA: " + orNA(fact.ShippingETA) + "\n\n")
	}
	return b.String()
}

// Fuse renders with the default configuration.
func Fuse(passages []retriever.Passage, dynamic []facts.Fact) string {
	return NewFuser(Config{}).Fuse(passages, dynamic)
}

func (f *Fuser) truncate(content string) string {
	limit := f.config.MaxPassageRunes
	if limit <= 0 || utf8.RuneCountInString(content) <= limit {
		return content
	}
	runes := []rune(content)
	truncated := strings.TrimSpace(string(runes[:limit]))
	if !strings.HasSuffix(truncated, "…") {
		truncated += "…"
	}
	return truncated
}

func formatCitations(citations []int) string {
	parts := make([]string, len(citations))
	for i, c := range citations {
		parts[i] = strconv.Itoa(c)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return facts.NotAvailable
	}
	return value
}
