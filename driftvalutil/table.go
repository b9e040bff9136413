/*
Copyright © 2024 the DriftVal authors.
This file is part of DriftVal.

DriftVal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

DriftVal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with DriftVal.  If not, see <http://www.gnu.org/licenses/>.
*/

package driftvalutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spatialmodel/driftval"
	"github.com/tealeg/xlsx"
)

// table is a header row followed by rows of int, float64 or string
// values.
type table struct {
	header []string
	rows   [][]interface{}
}

func summaryTable(sums []driftval.Summary) table {
	t := table{header: []string{"duration", "n", "numerical_n", "non_moving", "invalid",
		"median_zonal", "median_meridional", "iqr_zonal", "iqr_meridional",
		"model_iqr_zonal", "model_iqr_meridional", "iqr_ratio_zonal", "iqr_ratio_meridional"}}
	for _, s := range sums {
		t.rows = append(t.rows, []interface{}{s.Duration, s.N, s.NumericalN, s.NonMoving, s.Invalid,
			s.MedianZonal, s.MedianMeridional, s.IQRZonal, s.IQRMeridional,
			s.ModelIQRZonal, s.ModelIQRMeridional, s.IQRRatioZonal, s.IQRRatioMeridional})
	}
	return t
}

func histogramTable(h driftval.Histogram) table {
	t := table{header: []string{"lower", "upper", "observed", "modelled"}}
	for i := range h.Observed {
		t.rows = append(t.rows, []interface{}{h.Dividers[i], h.Dividers[i+1], h.Observed[i], h.Modelled[i]})
	}
	return t
}

// writeTable writes t to name as an Excel workbook if name ends in
// .xlsx and as CSV otherwise.
func writeTable(name, sheet string, t table) error {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return writeXLSX(name, sheet, t)
	}
	return writeCSV(name, t)
}

func writeCSV(name string, t table) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("driftval: creating table: %v", err)
	}
	w := csv.NewWriter(f)
	w.Write(t.header)
	for _, r := range t.rows {
		rec := make([]string, len(r))
		for i, v := range r {
			switch v := v.(type) {
			case int:
				rec[i] = strconv.Itoa(v)
			case float64:
				rec[i] = strconv.FormatFloat(v, 'g', -1, 64)
			default:
				rec[i] = fmt.Sprint(v)
			}
		}
		w.Write(rec)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("driftval: writing table %s: %v", name, err)
	}
	return f.Close()
}

func writeXLSX(name, sheet string, t table) error {
	f := xlsx.NewFile()
	s, err := f.AddSheet(sheet)
	if err != nil {
		return fmt.Errorf("driftval: creating workbook: %v", err)
	}
	row := s.AddRow()
	for _, h := range t.header {
		row.AddCell().SetString(h)
	}
	for _, r := range t.rows {
		row := s.AddRow()
		for _, v := range r {
			c := row.AddCell()
			switch v := v.(type) {
			case int:
				c.SetInt(v)
			case float64:
				c.SetFloat(v)
			default:
				c.SetString(fmt.Sprint(v))
			}
		}
	}
	if err := f.Save(name); err != nil {
		return fmt.Errorf("driftval: writing workbook %s: %v", name, err)
	}
	return nil
}
