package reports

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"kpireview/internal/domain/evaluation"
)

// EvaluationPDF renders a completed (or in-progress) evaluation as a
// one-page report suitable for archiving.
func EvaluationPDF(eval evaluation.Evaluation, scores []evaluation.Score) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Performance Evaluation")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", eval.EmployeeName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s", periodLabel(eval)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s", strings.ReplaceAll(eval.Status, "_", " ")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(70, 8, "KPI item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 8, "Max", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 8, "Self", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 8, "Manager", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 8, "Final", "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	for _, score := range scores {
		pdf.CellFormat(70, 8, score.ItemName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 8, fmt.Sprintf("%.1f", score.MaxScore), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 8, scoreLabel(score.SelfScore), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 8, scoreLabel(score.ManagerScore), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 8, scoreLabel(score.FinalScore), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Total score: %.1f", eval.TotalScore))
	if eval.FinalComment != "" {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, fmt.Sprintf("Final comment: %s", eval.FinalComment), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func periodLabel(eval evaluation.Evaluation) string {
	switch eval.Period {
	case evaluation.PeriodMonthly:
		return fmt.Sprintf("%d-%02d", eval.Year, eval.Month)
	case evaluation.PeriodQuarterly:
		return fmt.Sprintf("%d Q%d", eval.Year, eval.Quarter)
	default:
		return fmt.Sprintf("%d", eval.Year)
	}
}

func scoreLabel(value evaluation.ScoreValue) string {
	if !value.Present() {
		return "-"
	}
	return fmt.Sprintf("%.1f", value.Value)
}
