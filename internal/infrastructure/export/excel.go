// Package export renders frozen baselines as right-to-left Excel workbooks.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
)

const (
	SummarySheet = "ملخص"
	ItemsSheet   = "بنود الخطة"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var itemHeadings = []any{
	"#", "رمز الجهة", "الجهة", "نوع التدقيق", "الأولوية", "النطاق",
	"أيام العمل", "بداية الفترة", "نهاية الفترة", "المخرج", "درجة المخاطر",
}

// ExcelExporter writes a summary sheet and one row per snapshot item
type ExcelExporter struct{}

func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{}
}

// ExportBaseline renders the baseline. Item rows come from the frozen
// snapshot, not the live plan items.
func (e *ExcelExporter) ExportBaseline(p *plan.Plan, b *plan.Baseline, snap plan.Snapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return nil, fmt.Errorf("create items sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", ReadingOrder: 2},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummary(f, p, b, snap, header); err != nil {
		return nil, err
	}
	if err := writeItems(f, snap, header); err != nil {
		return nil, err
	}

	rtl := true
	for _, sheet := range []string{SummarySheet, ItemsSheet} {
		if err := f.SetSheetView(sheet, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
			return nil, fmt.Errorf("set sheet view: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, p *plan.Plan, b *plan.Baseline, snap plan.Snapshot, header int) error {
	rows := [][]any{
		{"البيان", "القيمة"},
		{"عنوان الخطة", p.Title},
		{"السنة المالية", snap.Year},
		{"الإصدار", p.Version},
		{"الحالة", string(p.Status)},
		{"تاريخ التجميد", snap.CreatedAt},
		{"عدد البنود", snap.ItemCount},
		{"بصمة SHA-256", b.Hash.String()},
		{"معرف خط الأساس", b.ID.String()},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", header); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "A", "B", 30)
}

func writeItems(f *excelize.File, snap plan.Snapshot, header int) error {
	if err := f.SetSheetRow(ItemsSheet, "A1", &itemHeadings); err != nil {
		return fmt.Errorf("write item headings: %w", err)
	}
	for i, it := range snap.Items {
		row := []any{
			i + 1,
			it.AuditUniverseCode,
			it.AuditUniverseName,
			it.Type,
			it.Priority,
			it.ScopeBrief,
			deref(it.EffortDays),
			deref(it.PeriodStart),
			deref(it.PeriodEnd),
			it.DeliverableType,
			deref(it.RiskScore),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(ItemsSheet, cell, &row); err != nil {
			return fmt.Errorf("write item row %d: %w", i+1, err)
		}
	}

	last, _ := excelize.CoordinatesToCellName(len(itemHeadings), 1)
	if err := f.SetCellStyle(ItemsSheet, "A1", last, header); err != nil {
		return err
	}
	if err := f.SetColWidth(ItemsSheet, "B", "K", 18); err != nil {
		return err
	}
	return f.SetPanes(ItemsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// deref yields an empty cell for nil
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
