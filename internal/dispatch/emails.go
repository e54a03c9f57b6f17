package dispatch

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/supplai-io/supplai/internal/email"
	"github.com/supplai-io/supplai/internal/models"
)

//go:embed templates/supplier_order.html
var supplierOrderHtml string
var supplierOrderHtmlTemplate *htmltemplate.Template

//go:embed templates/supplier_order.txt
var supplierOrderText string
var supplierOrderTextTemplate *texttemplate.Template

var templateFuncs = map[string]interface{}{
	"quantity": humanize.Ftoa,
}

func init() {
	supplierOrderHtmlTemplate = htmltemplate.Must(htmltemplate.New("templates/supplier_order.html").Funcs(templateFuncs).Parse(supplierOrderHtml))
	supplierOrderTextTemplate = texttemplate.Must(texttemplate.New("templates/supplier_order.txt").Funcs(templateFuncs).Parse(supplierOrderText))
}

// supplierOrderEmail is everything the supplier needs to fulfill its part of an order.
type supplierOrderEmail struct {
	Organization  models.Organization
	Order         models.Order
	SupplierOrder models.SupplierOrder
	PlacedBy      models.User
}

func (e supplierOrderEmail) subject() string {
	if e.Order.Reference != "" {
		return fmt.Sprintf("Order %s from %s", e.Order.Reference, e.Organization.Name)
	}
	return fmt.Sprintf("New order from %s", e.Organization.Name)
}

func composeSupplierOrderEmail(from string, e supplierOrderEmail, now time.Time) (email.Message, error) {
	supplier := e.SupplierOrder.Supplier
	if supplier == nil {
		return email.Message{}, fmt.Errorf("supplier order %s has no supplier loaded", e.SupplierOrder.ID)
	}
	variables := struct {
		Organization string
		SupplierName string
		Reference    string
		Notes        string
		DeliveryDate string
		DeliveryIn   string
		PlacedBy     string
		Items        []models.OrderItem
	}{
		Organization: e.Organization.Name,
		SupplierName: supplier.Name,
		Reference:    e.Order.Reference,
		Notes:        e.Order.Notes,
		PlacedBy:     e.PlacedBy.DisplayName(),
		Items:        e.SupplierOrder.Items,
	}
	if e.Order.DeliveryDate != nil {
		variables.DeliveryDate = e.Order.DeliveryDate.Format("Mon, 02 Jan 2006")
		variables.DeliveryIn = humanize.RelTime(*e.Order.DeliveryDate, now, "ago", "from now")
	}

	html := bytes.NewBuffer(nil)
	if err := supplierOrderHtmlTemplate.Execute(html, variables); err != nil {
		return email.Message{}, err
	}
	text := bytes.NewBuffer(nil)
	if err := supplierOrderTextTemplate.Execute(text, variables); err != nil {
		return email.Message{}, err
	}
	lines, err := itemsCSV(e.SupplierOrder.Items)
	if err != nil {
		return email.Message{}, err
	}

	message := email.Message{
		From:         fmt.Sprintf("%s <%s>", e.Organization.Name, from),
		To:           []string{supplier.Email},
		Subject:      e.subject(),
		PlainMessage: text.String(),
		HtmlMessages: html.String(),
		Date:         now,
		Attachments: []email.Attachment{
			{
				Name:        "order.csv",
				ContentType: "text/csv",
				Content:     bytes.NewReader(lines),
			},
		},
	}
	if e.PlacedBy.Email != "" {
		message.ReplyTo = e.PlacedBy.Email
	}
	return message, nil
}

func itemsCSV(items []models.OrderItem) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"product", "quantity", "unit"}); err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := w.Write([]string{item.Product, humanize.Ftoa(item.Quantity), item.Unit}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
