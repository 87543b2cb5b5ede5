package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rogerio-castellano/inventory-sync/internal/inventory"
)

type csvRow struct {
	Name     string
	Quantity string
}

func parseCSV(file io.Reader) ([]csvRow, error) {
	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV header")
	}

	index := map[string]int{}
	for i, h := range headers {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	nameCol, ok := index["name"]
	if !ok {
		return nil, fmt.Errorf("CSV header must contain name")
	}
	qtyCol, ok := index["quantity"]
	if !ok {
		return nil, fmt.Errorf("CSV header must contain quantity")
	}

	var rows []csvRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV read error: %v", err)
		}
		rows = append(rows, csvRow{Name: strings.TrimSpace(record[nameCol]), Quantity: record[qtyCol]})
	}
	return rows, nil
}

// ImportItemsHandler godoc
// @Summary Import items via CSV
// @Description CSV columns: name,quantity. Existing items are skipped or updated depending on mode.
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param location path string true "Location ID"
// @Param file formData file true "CSV file"
// @Param mode query string false "Import mode (skip|update)"
// @Success 200 {object} ImportItemsResult
// @Failure 400 {string} string "Invalid file"
// @Router /locations/{location}/items/import [post]
// @Security BearerAuth
func (s *Server) ImportItemsHandler(w http.ResponseWriter, r *http.Request) {
	mode := strings.ToLower(r.URL.Query().Get("mode"))
	if mode != "update" {
		mode = "skip" // default
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	records, err := parseCSV(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, ok := s.tracker(w, r)
	if !ok {
		return
	}

	var imported int
	seen := map[string]bool{}
	errorsList := []ValidationError{}
	rowError := func(row int, format string, args ...any) {
		errorsList = append(errorsList, ValidationError{Description: fmt.Sprintf("row %d: ", row) + fmt.Sprintf(format, args...)})
	}

	for i, rec := range records {
		rowNum := i + 2 // header is row 1

		if err := inventory.ValidateName("item name", rec.Name); err != nil {
			rowError(rowNum, "%s", describe(err))
			continue
		}
		quantity, err := inventory.ParseQuantity(rec.Quantity)
		if err != nil {
			rowError(rowNum, "%s", describe(err))
			continue
		}

		// the cache only sees rows written by this import once the
		// subscription delivers them
		_, cached := t.Lookup(rec.Name)
		if cached || seen[rec.Name] {
			if mode == "skip" {
				rowError(rowNum, "item '%s' already exists", rec.Name)
				continue
			}
			update := t.UpdateQuantity
			if !cached {
				update = t.Put
			}
			if err := update(r.Context(), rec.Name, quantity); err != nil {
				rowError(rowNum, "failed to update '%s': %v", rec.Name, err)
				continue
			}
			seen[rec.Name] = true
			imported++
			continue
		}

		if err := t.Put(r.Context(), rec.Name, quantity); err != nil {
			rowError(rowNum, "%v", err)
			continue
		}
		seen[rec.Name] = true
		imported++
	}

	s.respond(w, r, http.StatusOK, ImportItemsResult{
		ImportedItemsCount: imported,
		Errors:             errorsList,
	})
}
