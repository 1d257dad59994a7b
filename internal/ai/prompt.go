package ai

import (
	"fmt"
	"strings"
)

const valuationPrompt = `You estimate second-hand market values for a barter marketplace.
Using the item details (and the photo, if attached), answer ONLY in this exact format:

Minimum price: $X
Maximum price: $Y
Justification: one short sentence

Prices are in USD and must be plain numbers. Do not include any other text.`

// BuildValuationPrompt returns the instruction text and the item details as separate parts.
func BuildValuationPrompt(title, description string) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(title))
	fmt.Fprintf(&b, "Description: %s", strings.TrimSpace(description))
	return valuationPrompt, b.String()
}
