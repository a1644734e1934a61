package services

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"genai-campaign-api/pkg/logger"
	"genai-campaign-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

// CatalogService parses product catalogs from JSON, CSV/TSV or Excel and
// normalizes every record into a typed models.Product.
type CatalogService struct {
	log *logger.Logger
	// ordered header aliases per field, compared case-insensitively
	columns map[string][]string
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(log *logger.Logger) *CatalogService {
	return &CatalogService{
		log: logger.OrNop(log),
		columns: map[string][]string{
			"name":        {"name", "название", "наименование", "товар", "product", "product_name"},
			"category":    {"category", "категория"},
			"price":       {"price", "цена"},
			"margin":      {"margin", "маржа", "маржинальность"},
			"market_cost": {"market_cost", "cost", "себестоимость", "закупка"},
			"tags":        {"tags", "теги", "метки"},
			"description": {"description", "описание"},
		},
	}
}

// SupportedCatalogFormats lists the accepted file extensions.
var SupportedCatalogFormats = []string{".json", ".csv", ".tsv", ".txt", ".xlsx"}

// LoadFile opens a catalog from disk; the extension selects the parser.
func (s *CatalogService) LoadFile(path string) ([]models.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.InputFormatError{FileName: path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()
	return s.Load(filepath.Base(path), f)
}

// Load parses a catalog stream. fileName is only used to pick the format.
func (s *CatalogService) Load(fileName string, r io.Reader) ([]models.Product, error) {
	lower := strings.ToLower(fileName)

	var (
		records []map[string]interface{}
		err     error
	)
	switch {
	case strings.HasSuffix(lower, ".json"):
		records, err = s.parseJSON(fileName, r)
	case strings.HasSuffix(lower, ".csv"):
		records, err = s.parseDelimited(fileName, r, ',')
	case strings.HasSuffix(lower, ".tsv"):
		records, err = s.parseDelimited(fileName, r, '\t')
	case strings.HasSuffix(lower, ".txt"):
		records, err = s.parseSniffed(fileName, r)
	case strings.HasSuffix(lower, ".xlsx"):
		records, err = s.parseExcel(fileName, r)
	default:
		return nil, &models.InputFormatError{FileName: fileName, Reason: "supported formats are " + strings.Join(SupportedCatalogFormats, ", ")}
	}
	if err != nil {
		return nil, err
	}

	products := NormalizeRecords(records)
	s.log.Info("catalog parsed", "file", fileName, "records", len(records), "products", len(products))
	if len(products) == 0 {
		return nil, fmt.Errorf("%s: %w", fileName, models.ErrEmptyCatalog)
	}
	return products, nil
}

func (s *CatalogService) parseJSON(fileName string, r io.Reader) ([]map[string]interface{}, error) {
	var data interface{}
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, &models.InputFormatError{FileName: fileName, Reason: "invalid JSON", Err: err}
	}

	var items []interface{}
	switch v := data.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		list, ok := v["products"].([]interface{})
		if !ok {
			return nil, &models.InputFormatError{FileName: fileName, Reason: "expected an array or an object with a \"products\" array"}
		}
		items = list
	default:
		return nil, &models.InputFormatError{FileName: fileName, Reason: "expected an array or an object with a \"products\" array"}
	}

	records := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			records = append(records, m)
		}
	}
	return records, nil
}

func (s *CatalogService) parseDelimited(fileName string, r io.Reader, comma rune) ([]map[string]interface{}, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, &models.InputFormatError{FileName: fileName, Reason: "invalid delimited text", Err: err}
	}
	return s.rowsToRecords(rows), nil
}

// parseSniffed treats .txt as TSV when the header line has a tab, CSV otherwise.
func (s *CatalogService) parseSniffed(fileName string, r io.Reader) ([]map[string]interface{}, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &models.InputFormatError{FileName: fileName, Reason: "cannot read file", Err: err}
	}
	first, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	comma := ','
	if strings.Contains(first, "\t") {
		comma = '\t'
	}
	return s.parseDelimited(fileName, bytes.NewReader(data), comma)
}

func (s *CatalogService) parseExcel(fileName string, r io.Reader) ([]map[string]interface{}, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &models.InputFormatError{FileName: fileName, Reason: "invalid Excel workbook", Err: err}
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, &models.InputFormatError{FileName: fileName, Reason: "cannot read first sheet", Err: err}
	}
	return s.rowsToRecords(rows), nil
}

// rowsToRecords maps a header row plus data rows onto canonical field names.
// Unknown columns are ignored.
func (s *CatalogService) rowsToRecords(rows [][]string) []map[string]interface{} {
	if len(rows) < 2 {
		return nil
	}
	header := normalizeHeader(rows[0])
	indexes := make(map[string]int, len(s.columns))
	for field, aliases := range s.columns {
		if idx := findIndex(header, aliases); idx != -1 {
			indexes[field] = idx
		}
	}

	records := make([]map[string]interface{}, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]interface{}, len(indexes))
		for field, idx := range indexes {
			if idx < len(row) {
				if cell := strings.TrimSpace(row[idx]); cell != "" {
					rec[field] = cell
				}
			}
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	return records
}

// NormalizeRecords converts loosely typed records into Products. Records
// without a name are dropped; malformed numeric fields fall back to defaults.
func NormalizeRecords(records []map[string]interface{}) []models.Product {
	products := make([]models.Product, 0, len(records))
	for _, rec := range records {
		name := strings.TrimSpace(stringField(rec["name"]))
		if name == "" {
			continue
		}
		p := models.Product{
			Name:        name,
			Category:    strings.TrimSpace(stringField(rec["category"])),
			Price:       nonNegative(SafeFloat(rec["price"], 0)),
			Margin:      optionalMargin(rec["margin"]),
			MarketCost:  optionalFloat(rec["market_cost"]),
			Tags:        NormalizeTags(rec["tags"]),
			Description: strings.TrimSpace(stringField(rec["description"])),
		}
		products = append(products, p)
	}
	return products
}

// SafeFloat parses numbers, numeric strings ("1 299,90 ₽", "35%") and
// returns def for anything it cannot read.
func SafeFloat(v interface{}, def float64) float64 {
	f, ok := parseFloat(v)
	if !ok {
		return def
	}
	return f
}

func parseFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !isBad(x)
	case float32:
		return float64(x), !isBad(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil && !isBad(f)
	case string:
		cleaned := strings.NewReplacer(" ", "", " ", "", "₽", "", "%", "", "руб.", "", "руб", "").Replace(strings.TrimSpace(x))
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		return f, err == nil && !isBad(f)
	}
	return 0, false
}

// NormalizeTags accepts a list, a comma-joined string, or nothing, and
// always returns a list of trimmed non-empty labels.
func NormalizeTags(v interface{}) []string {
	tags := []string{}
	switch x := v.(type) {
	case []string:
		for _, t := range x {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	case []interface{}:
		for _, item := range x {
			if t := strings.TrimSpace(stringField(item)); t != "" {
				tags = append(tags, t)
			}
		}
	case string:
		for _, t := range strings.Split(x, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// optionalMargin keeps absence distinct from zero. Values strictly between 0
// and 1 are raw fractions and are converted to percent.
func optionalMargin(v interface{}) *float64 {
	f, ok := parseFloat(v)
	if !ok {
		return nil
	}
	if f > 0 && f < 1 {
		f *= 100
	}
	return &f
}

func optionalFloat(v interface{}) *float64 {
	f, ok := parseFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func stringField(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func nonNegative(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}

func normalizeHeader(h []string) []string {
	out := make([]string, len(h))
	for i, v := range h {
		out[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(v, "\ufeff")))
	}
	return out
}

func findIndex(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if h == name {
				return i
			}
		}
	}
	return -1
}
