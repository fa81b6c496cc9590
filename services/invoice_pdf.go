package services

import (
	"bytes"
	"fmt"

	"backend_taskly/models"

	"github.com/jung-kurt/gofpdf"
)

// RenderInvoicePDF формирует PDF-версию счета на подписку
func RenderInvoicePDF(invoice *models.Invoice, company *models.Company) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	// Шапка
	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(120, 10, "INVOICE")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(70, 10, invoice.Number, "", 1, "R", false, 0, "")
	pdf.Ln(6)

	// Получатель
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(190, 6, company.Name)
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	if company.Address != "" {
		pdf.Cell(190, 5, company.Address)
		pdf.Ln(5)
	}
	if company.ContactEmail != "" {
		pdf.Cell(190, 5, company.ContactEmail)
		pdf.Ln(5)
	}
	pdf.Ln(6)

	// Таблица с позицией счета
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 8, "Description", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, "Duration", "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 8, "Amount", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(90, 8, invoice.PlanName, "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, fmt.Sprintf("%d days", invoice.PlanDuration), "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 8, fmt.Sprintf("%s %s", invoice.Currency, invoice.Amount.StringFixed(2)), "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(120, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(70, 8, fmt.Sprintf("%s %s", invoice.Currency, invoice.Amount.StringFixed(2)), "1", 1, "R", false, 0, "")
	pdf.Ln(8)

	// Статус и сроки
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(190, 6, fmt.Sprintf("Status: %s", invoice.Status))
	pdf.Ln(6)
	pdf.Cell(190, 6, fmt.Sprintf("Due date: %s", invoice.DueDate.Format("02 Jan 2006")))
	pdf.Ln(6)
	if invoice.PaidAt != nil {
		pdf.Cell(190, 6, fmt.Sprintf("Paid at: %s", invoice.PaidAt.Format("02 Jan 2006 15:04")))
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("ошибка генерации PDF счета: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderAddOnInvoicePDF формирует PDF-версию счета за дополнение
func RenderAddOnInvoicePDF(invoice *models.InvoiceAddOn, company *models.Company) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(120, 10, "INVOICE")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(70, 10, invoice.Number, "", 1, "R", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(190, 6, company.Name)
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(120, 8, "Description", "1", 0, "L", false, 0, "")
	pdf.CellFormat(70, 8, "Amount", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(120, 8, invoice.Description, "1", 0, "L", false, 0, "")
	pdf.CellFormat(70, 8, fmt.Sprintf("%s %s", invoice.Currency, invoice.Amount.StringFixed(2)), "1", 1, "R", false, 0, "")
	pdf.Ln(8)

	pdf.Cell(190, 6, fmt.Sprintf("Status: %s", invoice.Status))
	pdf.Ln(6)
	pdf.Cell(190, 6, fmt.Sprintf("Due date: %s", invoice.DueDate.Format("02 Jan 2006")))
	pdf.Ln(6)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("ошибка генерации PDF счета: %w", err)
	}
	return buf.Bytes(), nil
}
