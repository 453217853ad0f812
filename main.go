package main

import (
	"flag"
	"fmt"

	"github.com/finbase/subcore/internal/types"
)

// generateCodes creates n fresh promotion codes ready to hand to a campaign.
func generateCodes(n int) []string {
	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		codes = append(codes, types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_PROMOTION))
	}
	return codes
}

func main() {
	count := flag.Int("n", 1, "Number of promotion codes to generate")
	flag.Parse()

	// Generate and display the promotion codes.
	for _, code := range generateCodes(*count) {
		fmt.Println("Generated promotion code:", code)
	}
}
