package quote

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/awkward-3312/SDSinventory/internal/model"
	"github.com/awkward-3312/SDSinventory/internal/money"
)

const sheetName = "Cotizacion"

// Text renders a quote as plain text ready to paste into a chat or email.
func Text(q *model.Quote) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Cotización %s\n", q.Number)
	if q.CustomerName != "" {
		fmt.Fprintf(&b, "Cliente: %s\n", q.CustomerName)
	}
	fmt.Fprintf(&b, "Fecha: %s\n", q.CreatedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Válida hasta: %s\n", q.ValidUntil.Format("2006-01-02"))
	fmt.Fprintf(&b, "Estado: %s\n", q.Status)

	b.WriteString("\nDetalle:\n")
	for i, it := range q.Items {
		fmt.Fprintf(&b, "%d. Producto %s x %s", i+1, it.ProductID, trimFloat(it.Qty))
		if it.Width != nil && it.Height != nil {
			fmt.Fprintf(&b, " (%s x %s)", trimFloat(*it.Width), trimFloat(*it.Height))
		}
		fmt.Fprintf(&b, ": %s\n", money.Format(it.SalePrice, q.Currency))
	}

	b.WriteString("\nResumen:\n")
	fmt.Fprintf(&b, "Materiales: %s\n", money.Format(q.MaterialsCostTotal, q.Currency))
	fmt.Fprintf(&b, "Costo operativo: %s\n", money.Format(q.OperationalCostTotal, q.Currency))
	fmt.Fprintf(&b, "Total: %s\n", money.Format(q.TotalPrice, q.Currency))

	if notes := strings.TrimSpace(q.Notes); notes != "" {
		fmt.Fprintf(&b, "\nNotas: %s\n", notes)
	}
	return b.String()
}

func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

var xlsxHeader = []any{
	"#", "Producto", "Receta", "Cantidad", "Ancho", "Alto",
	"Materiales", "Costo operativo", "Precio sugerido", "Precio de venta", "Ganancia",
}

// WriteXLSX writes the quote as a one-sheet workbook.
func WriteXLSX(w io.Writer, q *model.Quote) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	meta := [][]any{
		{"Cotización", q.Number},
		{"Cliente", q.CustomerName},
		{"Fecha", q.CreatedAt.Format("2006-01-02")},
		{"Válida hasta", q.ValidUntil.Format("2006-01-02")},
		{"Estado", string(q.Status)},
		{"Moneda", q.Currency},
	}
	row := 1
	for _, m := range meta {
		if err := setRow(f, row, m); err != nil {
			return err
		}
		row++
	}

	row++
	headerRow := row
	if err := setRow(f, row, xlsxHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(xlsxHeader), headerRow)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", headerRow), last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, it := range q.Items {
		row++
		if err := setRow(f, row, []any{
			i + 1, it.ProductID, it.RecipeID, it.Qty, optional(it.Width), optional(it.Height),
			it.MaterialsCost, it.OperationalAlloc, it.SuggestedPrice, it.SalePrice, it.Profit,
		}); err != nil {
			return err
		}
	}

	row += 2
	totals := [][]any{
		{"Materiales", q.MaterialsCostTotal},
		{"Costo operativo", q.OperationalCostTotal},
		{"Costo total", q.TotalCost},
		{"Total", q.TotalPrice},
		{"Ganancia", q.TotalProfit},
	}
	for _, t := range totals {
		if err := setRow(f, row, t); err != nil {
			return err
		}
		row++
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("set row %d: %w", row, err)
	}
	return nil
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
