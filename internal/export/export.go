// Package export writes test cases, with any execution results merged in,
// as CSV or as a spreadsheet.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"

	"swagtest/internal/model"
)

const (
	CSVFilename  = "all_test_cases.csv"
	XLSXFilename = "all_test_cases.xlsx"

	sheetName   = "Test Cases"
	columnWidth = 24
	failedFill  = "#FFC7CE"
)

// Headers is the fixed column list. Keys outside it are dropped.
var Headers = []string{
	"Test Case Name",
	"Description",
	"Endpoint",
	"Method",
	"Operation ID",
	"Summary",
	"Request Body",
	"Expected Status Code",
	"Headers",
	"Actual Status Code",
	"Status",
	"Error",
	"Response Time",
}

const responseTimeHeader = "Response Time"

// Row flattens one case. Objects and arrays are written as compact JSON,
// the response time with four decimals, missing values as "".
func Row(tc json.RawMessage) []string {
	obj := gjson.ParseBytes(tc)
	row := make([]string, len(Headers))
	for i, h := range Headers {
		row[i] = cell(h, obj.Get(gjson.Escape(h)))
	}
	return row
}

func cell(header string, v gjson.Result) string {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return ""
	case v.IsObject() || v.IsArray():
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(v.Raw)); err != nil {
			return v.Raw
		}
		return buf.String()
	case header == responseTimeHeader && v.Type == gjson.Number:
		return fmt.Sprintf("%.4f", v.Float())
	case v.Type == gjson.Number:
		return v.Raw
	}
	return v.String()
}

// Cases encodes typed cases for Row.
func Cases(cases []model.TestCase) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(cases))
	for _, tc := range cases {
		b, err := json.Marshal(tc)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func WriteCSV(w io.Writer, cases []json.RawMessage) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return err
	}
	for _, tc := range cases {
		if err := cw.Write(Row(tc)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the same rows as WriteCSV into a single sheet. Rows of
// failed or errored cases are filled red.
func WriteXLSX(w io.Writer, cases []json.RawMessage) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	last, err := excelize.ColumnNumberToName(len(Headers))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "A", last, columnWidth); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	failed, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{failedFill}},
	})
	if err != nil {
		return err
	}

	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return err
	}

	statusCol := indexOf("Status")
	for i, tc := range cases {
		row := Row(tc)
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return err
		}
		if s := strings.ToUpper(row[statusCol]); s == model.StatusFailed || s == model.StatusError {
			end, _ := excelize.CoordinatesToCellName(len(Headers), i+2)
			if err := f.SetCellStyle(sheetName, start, end, failed); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}

func indexOf(header string) int {
	for i, h := range Headers {
		if h == header {
			return i
		}
	}
	return -1
}
