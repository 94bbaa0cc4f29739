// internal/pkg/pdf/service.go
package pdf

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/order"
)

var invoiceTmpl = template.Must(template.New("invoice").Parse(invoiceTemplate))

// Service renders order invoices
type Service struct {
	config *config.Config
	now    func() time.Time
}

// NewService creates a new PDF service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		now:    time.Now,
	}
}

// InvoiceData represents the data passed to the invoice template
type InvoiceData struct {
	InvoiceNumber string        `json:"invoice_number"`
	InvoiceDate   string        `json:"invoice_date"`
	OrderDate     string        `json:"order_date"`
	Currency      string        `json:"currency"`
	Order         *order.Order  `json:"order"`
	Lines         []InvoiceLine `json:"lines"`
	Total         string        `json:"total"`
	Company       CompanyInfo   `json:"company"`
}

// InvoiceLine is one rendered order item
type InvoiceLine struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	Subtotal string `json:"subtotal"`
}

// CompanyInfo represents company information
type CompanyInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// BuildInvoiceData maps an order onto the template model
func (s *Service) BuildInvoiceData(o *order.Order) InvoiceData {
	lines := make([]InvoiceLine, 0, len(o.Items))
	for i := range o.Items {
		item := &o.Items[i]
		lines = append(lines, InvoiceLine{
			Name:     item.Name,
			SKU:      item.SKU,
			Quantity: item.Quantity,
			Price:    item.Price.StringFixed(2),
			Subtotal: item.Subtotal().StringFixed(2),
		})
	}

	return InvoiceData{
		InvoiceNumber: "INV-" + o.OrderNumber,
		InvoiceDate:   s.now().Format("January 2, 2006"),
		OrderDate:     o.CreatedAt.Format("January 2, 2006"),
		Currency:      s.config.Invoice.Currency,
		Order:         o,
		Lines:         lines,
		Total:         o.TotalPrice.StringFixed(2),
		Company: CompanyInfo{
			Name:    s.config.Invoice.CompanyName,
			Address: s.config.Invoice.CompanyAddress,
			Phone:   s.config.Invoice.CompanyPhone,
			Email:   s.config.Invoice.CompanyEmail,
		},
	}
}

// RenderInvoiceHTML renders the invoice markup for an order
func (s *Service) RenderInvoiceHTML(o *order.Order) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, s.BuildInvoiceData(o)); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// GenerateInvoice generates a PDF invoice for an order. Requires the
// wkhtmltopdf binary on PATH.
func (s *Service) GenerateInvoice(o *order.Order) (*bytes.Buffer, error) {
	htmlContent, err := s.RenderInvoiceHTML(o)
	if err != nil {
		return nil, fmt.Errorf("failed to generate HTML: %w", err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader([]byte(htmlContent)))
	page.FooterRight.Set("[page]")
	page.FooterFontSize.Set(9)
	page.Zoom.Set(0.95)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}

	return bytes.NewBuffer(pdfg.Bytes()), nil
}

const invoiceTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Invoice {{.InvoiceNumber}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; color: #333; }
        .header { margin-bottom: 30px; border-bottom: 2px solid #eee; padding-bottom: 20px; overflow: hidden; }
        .company-info { float: left; width: 50%; }
        .invoice-info { float: right; width: 50%; text-align: right; }
        .invoice-title { font-size: 28px; font-weight: bold; color: #2563eb; margin-bottom: 10px; }
        .section-title { font-size: 16px; font-weight: bold; margin-bottom: 10px; color: #374151; }
        .items-table { width: 100%; border-collapse: collapse; margin: 30px 0; }
        .items-table th, .items-table td { border: 1px solid #ddd; padding: 10px 8px; text-align: left; }
        .items-table th { background-color: #f8f9fa; }
        .items-table .num { text-align: right; width: 90px; }
        .totals { float: right; width: 300px; font-size: 18px; font-weight: bold; text-align: right; }
        .footer { clear: both; margin-top: 50px; padding-top: 20px; border-top: 1px solid #eee; text-align: center; color: #666; font-size: 12px; }
        .status-badge { display: inline-block; padding: 4px 8px; border-radius: 4px; font-size: 12px; font-weight: bold; text-transform: uppercase; background-color: #fef3c7; color: #92400e; }
    </style>
</head>
<body>
    <div class="header">
        <div class="company-info">
            <h1>{{.Company.Name}}</h1>
            {{if .Company.Address}}<p>{{.Company.Address}}</p>{{end}}
            {{if .Company.Phone}}<p>Phone: {{.Company.Phone}}</p>{{end}}
            {{if .Company.Email}}<p>Email: {{.Company.Email}}</p>{{end}}
        </div>
        <div class="invoice-info">
            <div class="invoice-title">INVOICE</div>
            <p><strong>Invoice #:</strong> {{.InvoiceNumber}}</p>
            <p><strong>Invoice Date:</strong> {{.InvoiceDate}}</p>
            <p><strong>Order #:</strong> {{.Order.OrderNumber}}</p>
            <p><strong>Order Date:</strong> {{.OrderDate}}</p>
            <p><span class="status-badge">{{.Order.Status}}</span></p>
        </div>
    </div>

    <div class="section-title">Ship To:</div>
    <p><strong>{{.Order.RecipientName}}</strong></p>
    <p>{{.Order.RecipientAddress}}</p>
    <p>Phone: {{.Order.RecipientPhone}}</p>
    {{if .Order.Notes}}<p><em>{{.Order.Notes}}</em></p>{{end}}

    <table class="items-table">
        <thead>
            <tr>
                <th>Item</th>
                <th>SKU</th>
                <th class="num">Qty</th>
                <th class="num">Price</th>
                <th class="num">Total</th>
            </tr>
        </thead>
        <tbody>
            {{range .Lines}}
            <tr>
                <td><strong>{{.Name}}</strong></td>
                <td>{{.SKU}}</td>
                <td class="num">{{.Quantity}}</td>
                <td class="num">{{.Price}}</td>
                <td class="num">{{.Subtotal}}</td>
            </tr>
            {{end}}
        </tbody>
    </table>

    <div class="totals">Total: {{.Total}} {{.Currency}}</div>

    <div class="footer">
        <p>Thank you for your business!</p>
        {{if .Company.Email}}<p>If you have any questions about this invoice, please contact us at {{.Company.Email}}</p>{{end}}
    </div>
</body>
</html>
`
