package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/formgate/formgate-api/config"
)

// ApplicationPDFHandler renders an application as a one-page PDF summary for
// sharing outside the dashboard
func (a Application) ApplicationPDFHandler(w http.ResponseWriter, r *http.Request) {
	application, ok := a.findOwnedApplication(w, r)
	if !ok {
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, application.FullName)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Email: %s", application.Email))
	pdf.Ln(6)
	if application.Phone != "" {
		pdf.Cell(0, 7, fmt.Sprintf("Phone: %s", application.Phone))
		pdf.Ln(6)
	}
	pdf.Cell(0, 7, fmt.Sprintf("Status: %s", strings.Title(application.Status)))
	pdf.Ln(6)
	if application.Rating > 0 {
		pdf.Cell(0, 7, fmt.Sprintf("Rating: %d/5", application.Rating))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	if application.CoverLetter != "" {
		pdfSection(pdf, "Cover Letter")
		pdf.MultiCell(0, 5, application.CoverLetter, "", "L", false)
		pdf.Ln(4)
	}

	if len(application.Education) > 0 {
		pdfSection(pdf, "Education")
		for _, e := range application.Education {
			pdf.MultiCell(0, 5, fmt.Sprintf("%s, %s in %s (%d-%d)",
				e.School, e.Degree, e.Field, e.StartYear, e.EndYear), "", "L", false)
		}
		pdf.Ln(4)
	}

	if len(application.Experience) > 0 {
		pdfSection(pdf, "Experience")
		for _, e := range application.Experience {
			pdf.MultiCell(0, 5, fmt.Sprintf("%s at %s (%d-%d)",
				e.Title, e.Company, e.StartYear, e.EndYear), "", "L", false)
			if e.Description != "" {
				pdf.MultiCell(0, 5, e.Description, "", "L", false)
			}
		}
		pdf.Ln(4)
	}

	if len(application.InterviewNotes) > 0 {
		pdfSection(pdf, "Interview Notes")
		for _, n := range application.InterviewNotes {
			pdf.MultiCell(0, 5, fmt.Sprintf("%s: %s", n.Author, n.Note), "", "L", false)
		}
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="application-%s.pdf"`, application.ID.Hex()))
	if err := pdf.Output(w); err != nil {
		config.ErrorStatus("failed to render pdf", http.StatusInternalServerError, w, err)
		return
	}
}

func pdfSection(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
}
