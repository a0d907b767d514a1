package vocab

import (
	"fmt"

	"github.com/example/vocabbot/pkg/models"
	"github.com/xuri/excelize/v2"
)

// LoadExcel reads one vocab set from the first sheet of an .xlsx file.
// The column contract is the same as for CSV: foreign word, translation,
// optional annotation.
func LoadExcel(setID, path string) (*models.VocabSet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	// excelize may omit trailing empty cells; drop them so the column
	// count validation sees what the author typed.
	for i, row := range rows {
		for len(row) > 0 && row[len(row)-1] == "" {
			row = row[:len(row)-1]
		}
		rows[i] = row
	}
	return buildSet(setID, rows)
}
