package infra

// pdf.go — closing-report PDF generation using go-pdf/fpdf.
// Renders a thermal-receipt-style report for a closed session:
//   - header with register name and session id
//   - opening/closing timestamps
//   - per-payment-method sales breakdown
//   - expected vs. counted, variance and its classification
//
// The output file is saved to storagePath/session_{id}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tillpoint/internal/model"
	"tillpoint/internal/reconcile"

	"github.com/go-pdf/fpdf"
)

// ReportPath returns the canonical location of a session's closing report.
func ReportPath(storagePath, sessionID string) string {
	return filepath.Join(storagePath, fmt.Sprintf("session_%s.pdf", sessionID))
}

// GenerateClosingReportPDF renders the closing report for a CLOSED session.
// Returns the absolute path to the generated file.
func GenerateClosingReportPDF(session *model.CashSession, register *model.CashRegister, summary reconcile.SalesSummary, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	filePath := ReportPath(storagePath, session.ID.String())

	// 74mm × 140mm — thermal receipt paper, taller than a sale ticket to fit
	// the reconciliation block.
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: 140},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, "Tillpoint", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Session Closing Report", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, register.Name, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Session "+session.ID.String(), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, "Opened  "+session.OpenedAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	if session.ClosedAt != nil {
		pdf.CellFormat(contentW, 4, "Closed  "+session.ClosedAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Sales breakdown ──────────────────────────────────────────────────────
	col1 := contentW * 0.55
	col2 := contentW * 0.45

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Method", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, method := range model.PaymentMethods {
		amount, ok := summary.ByMethod[method]
		if !ok {
			continue
		}
		pdf.CellFormat(col1, 4, method, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 4, amount.StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, fmt.Sprintf("Sales (%d)", summary.Count), "T", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, summary.Total.StringFixed(2), "T", 1, "R", false, 0, "")
	pdf.Ln(2)

	// ── Reconciliation ───────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(col1, 4, "Opening float", "", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 4, session.OpeningAmount.StringFixed(2), "", 1, "R", false, 0, "")
	if session.ExpectedAmount != nil {
		pdf.CellFormat(col1, 4, "Expected", "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 4, session.ExpectedAmount.StringFixed(2), "", 1, "R", false, 0, "")
	}
	if session.CountedAmount != nil {
		pdf.CellFormat(col1, 4, "Counted", "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 4, session.CountedAmount.StringFixed(2), "", 1, "R", false, 0, "")
	}
	if session.Variance != nil && session.Direction != nil {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(col1, 6, "Variance ("+*session.Direction+")", "T", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 6, session.Variance.StringFixed(2), "T", 1, "R", false, 0, "")
	}

	if session.Notes != nil && *session.Notes != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 6)
		pdf.MultiCell(contentW, 3.5, "Notes: "+*session.Notes, "", "L", false)
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 6)
	pdf.CellFormat(contentW, 4, "Generated "+time.Now().Format("02/01/2006 15:04"), "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write report: %w", err)
	}
	return filePath, nil
}
