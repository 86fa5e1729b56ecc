package http

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	application "garden-cloud/internal/telemetry/application"
)

var exportHeader = []string{"machineId", "channelId", "type", "value", "timestamp", "frequency_label"}

// BuildReadingsCSV renders reading records as CSV.
func BuildReadingsCSV(records []application.ReadingRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, record := range records {
		row := []string{
			record.MachineID,
			record.ChannelID,
			record.Type,
			fmt.Sprintf("%g", record.Value),
			record.Timestamp,
			record.FrequencyLabel,
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReadingsXLSX renders reading records as a single-sheet workbook.
func BuildReadingsXLSX(records []application.ReadingRecord) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "readings"
	f.SetSheetName("Sheet1", sheet)

	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
	}
	for i, record := range records {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), record.MachineID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), record.ChannelID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), record.Type)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), record.Value)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), record.Timestamp)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), record.FrequencyLabel)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReadingsPDF renders a minimal PDF table of reading records.
func BuildReadingsPDF(machineID string, records []application.ReadingRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Sensor Readings")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Machine: %s", machineID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Readings: %d", len(records)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(55, 6, "Timestamp", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Frequency", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, record := range records {
		pdf.CellFormat(55, 6, record.Timestamp, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, record.Type, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%g", record.Value), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, record.FrequencyLabel, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
