package web

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/erpload/internal/core"
)

var errUnknownFormat = errors.New("unknown export format")

// ledgerHeader is the column layout of ledger exports.
var ledgerHeader = []string{"Time", "Status", "Code", "Message", "Explanation"}

const exportTimeLayout = "2006-01-02 15:04:05"

// handleExportLog downloads the session ledger as CSV (default) or XLSX.
func (s *Server) handleExportLog(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	views := core.Project(sess.Ledger.Entries())
	timestamp := time.Now().Format("20060102_150405")

	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		filename := fmt.Sprintf("ledger_%s.csv", timestamp)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		if err := writeLedgerCSV(w, views); err != nil {
			slog.Error("ledger csv export failed", "error", err)
		}
	case "xlsx":
		f, err := ledgerWorkbook(views)
		if err != nil {
			respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		defer func() { _ = f.Close() }()

		filename := fmt.Sprintf("ledger_%s.xlsx", timestamp)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		if err := f.Write(w); err != nil {
			slog.Error("ledger xlsx export failed", "error", err)
		}
	default:
		msg := core.UserMessage{
			Message: fmt.Sprintf("Unknown export format %q", format),
			Action:  "Use format=csv or format=xlsx",
			Code:    "EXP001",
		}
		if wantsJSON(r) {
			respondErrorJSON(w, errUnknownFormat, msg, http.StatusBadRequest)
			return
		}
		respondErrorHTML(w, r, msg, http.StatusBadRequest)
	}
}

// ledgerRecord flattens one entry into export columns.
func ledgerRecord(v core.EntryView) []string {
	code := ""
	if v.HasCode() {
		code = strconv.Itoa(v.Code)
	}
	return []string{v.At.Format(exportTimeLayout), string(v.Status), code, v.Message, v.Explanation}
}

func writeLedgerCSV(w http.ResponseWriter, views []core.EntryView) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(ledgerHeader); err != nil {
		return err
	}
	for _, v := range views {
		if err := csvWriter.Write(ledgerRecord(v)); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// ledgerWorkbook builds a single-sheet workbook of the ledger.
func ledgerWorkbook(views []core.EntryView) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	rows := make([][]string, 0, len(views)+1)
	rows = append(rows, ledgerHeader)
	for _, v := range views {
		rows = append(rows, ledgerRecord(v))
	}

	for i, rec := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		values := make([]interface{}, len(rec))
		for j, s := range rec {
			values[j] = s
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write ledger row %d: %w", i, err)
		}
	}
	if err := f.SetColWidth(sheet, "D", "E", 60); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}
