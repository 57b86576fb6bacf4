package orders

import (
	"bytes"
	"fmt"

	"storefront/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// RenderInvoice draws a one-page packing slip with a QR code carrying the order id.
func RenderInvoice(o models.Order) ([]byte, error) {
	qrPNG, err := qrcode.Encode("order:"+o.ID, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Packing Slip")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, "Order: "+o.ID)
	pdf.Ln(6)
	pdf.Cell(0, 7, "Placed: "+o.CreatedAt.Format("2006-01-02 15:04 MST"))
	pdf.Ln(6)
	status := "Not delivered"
	if o.IsDelivered && o.DeliveredAt != nil {
		status = "Delivered " + o.DeliveredAt.Format("2006-01-02 15:04 MST")
	}
	pdf.Cell(0, 7, "Status: "+status)
	pdf.Ln(10)

	a := o.ShippingAddress
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 7, "Ship to")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 11)
	for _, line := range []string{
		a.FirstName + " " + a.LastName,
		a.Address,
		fmt.Sprintf("%s, %s %s", a.City, a.State, a.ZipCode),
		a.Email,
		a.Phone,
	} {
		pdf.Cell(0, 6, tr(line))
		pdf.Ln(6)
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 20, 40, 40, false, imageOpts, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(100, 8, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	for _, it := range o.OrderItems {
		pdf.CellFormat(100, 7, tr(it.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprint(it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, it.Price.String(), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, it.Price.Times(it.Quantity).String(), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(150, 9, "Order total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(30, 9, o.TotalPrice.String(), "T", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
