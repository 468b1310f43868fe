package agreement

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/shinyyama/agri-market-backend/internal/model"
)

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Render lays out the agreed terms of an order as a one-page A4 PDF.
func Render(o *model.Order, crop *model.Crop, issued time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetTitle(fmt.Sprintf("Purchase agreement #%d", o.ID), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Purchase Agreement", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Order #%d  |  Negotiation #%d  |  Issued %s", o.ID, o.NegotiationID, issued.Format("02-Jan-2006 15:04 MST")), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Parties", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, "Farmer: "+o.FarmerUID, "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Wholesaler: "+o.WholesalerUID, "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Terms", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(60, 7, "Crop", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Quantity", "1", 0, "C", true, 0, "")
	pdf.CellFormat(45, 7, "Price per unit", "1", 0, "C", true, 0, "")
	pdf.CellFormat(45, 7, "Total", "1", 1, "C", true, 0, "")

	name := fmt.Sprintf("Crop #%d", o.CropID)
	if crop != nil {
		name = crop.Name
		if crop.Category != "" {
			name += " (" + crop.Category + ")"
		}
	}
	if len(name) > 32 {
		name = name[:29] + "..."
	}
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(60, 6, name, "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 6, fmt.Sprintf("%s %s", strconv.FormatFloat(o.Quantity.Value, 'f', -1, 64), o.Quantity.Unit), "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Rs. "+amount(o.PricePerUnit), "1", 0, "R", false, 0, "")
	pdf.CellFormat(45, 6, "Rs. "+amount(o.TotalAmount), "1", 1, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(190, 5, "The price and quantity above were agreed through the negotiation referenced in this document "+
		"and are final. Delivery and payment follow the order status recorded on the marketplace.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
