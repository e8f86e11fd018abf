// Package cli provides CLI output helpers for Podbor.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/velestore/podbor/internal/session"
	"github.com/velestore/podbor/internal/storage"
	"github.com/velestore/podbor/pkg/utils"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteTurnResult writes one resolution turn to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteTurnResult(w io.Writer, result *session.TurnResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		writeTurnResultText(w, result)
		return nil
	}
}

func writeTurnResultText(w io.Writer, result *session.TurnResult) {
	if result.NeedsClarification {
		fmt.Fprintf(w, "%s\n", result.Prompt)
		return
	}
	fmt.Fprintf(w, "Найдено товаров: %d\n\n", len(result.Results))
	for _, r := range result.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────\n")
		fmt.Fprintf(w, "%s | %.0f руб. | score %.4f\n", r.Name, r.Price, r.Score)
		if r.Category != "" {
			fmt.Fprintf(w, "Категория: %s\n", r.Category)
		}
		if r.Description != "" {
			fmt.Fprintf(w, "%s\n", utils.Truncate(r.Description, 200))
		}
		if r.Link != "" {
			fmt.Fprintf(w, "%s\n", r.Link)
		}
		fmt.Fprintln(w)
	}
}

// WritePopularProducts writes the popularity leaderboard to w in the given format.
func WritePopularProducts(w io.Writer, products []storage.PopularProduct, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(products)
	default:
		if len(products) == 0 {
			fmt.Fprintln(w, "No products have been shown yet.")
			return nil
		}
		for i, p := range products {
			fmt.Fprintf(w, "%d. %s | %.0f руб. | shown %d times\n", i+1, p.Name, p.Price, p.ShownCount)
			if p.Link != "" {
				fmt.Fprintf(w, "   %s\n", p.Link)
			}
		}
		return nil
	}
}
