package ai

import (
	"fmt"
	"strings"

	"github.com/shinyyama/agri-market-backend/internal/model"
)

const counterPrompt = `You advise a party in a wholesale produce negotiation in India.
Suggest the next counter-offer price per unit for the party named below.

Rules:
* Reply with exactly one number wrapped in dollar signs, e.g. $2350$. No other text.
* The price is per unit of the crop, in rupees, with at most one decimal place.
* Stay between the latest offers of both parties when both exist.
* Never suggest a price the other party has already bettered.`

// SuggestionInput is what the advisor knows about a negotiation.
type SuggestionInput struct {
	CropName       string
	Category       string
	Unit           string
	ReferencePrice float64
	Quantity       model.Quantity
	For            model.Role
	Offers         []model.Offer
}

// BuildCounterPrompt renders the negotiation state as plain text after the fixed instructions.
func BuildCounterPrompt(in SuggestionInput) string {
	var b strings.Builder
	b.WriteString(counterPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Crop: %s (%s)\n", in.CropName, in.Category)
	fmt.Fprintf(&b, "Reference price: %g per %s\n", in.ReferencePrice, in.Unit)
	fmt.Fprintf(&b, "Quantity: %g %s\n", in.Quantity.Value, in.Quantity.Unit)
	fmt.Fprintf(&b, "Advise the: %s\n", in.For)
	b.WriteString("Offer history (oldest first):\n")
	for _, o := range in.Offers {
		fmt.Fprintf(&b, "%d. %s offered %g\n", o.Seq, o.OfferedBy, o.Amount)
	}
	return b.String()
}
