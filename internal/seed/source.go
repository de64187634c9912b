// Package seed は大学カタログの投入と写真URLの補完を行うバッチジョブを提供する。
package seed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/uniswipe/internal/model"
)

// Record は投入元の1行分の大学データ。
type Record struct {
	Line     int // 投入元での行番号（ヘッダーを1行目とする）
	Name     string
	Tags     []string
	PhotoURL string
	City     string
	State    string
	Country  string
}

// ToUniversity はRecordをmodel.Universityに変換する。
func (r Record) ToUniversity() *model.University {
	return &model.University{
		Name:     r.Name,
		Tags:     model.NormalizeTags(r.Tags),
		PhotoURL: r.PhotoURL,
		City:     r.City,
		State:    r.State,
		Country:  r.Country,
	}
}

// ErrUnsupportedSource は対応していない拡張子の投入元が指定された場合に返される。
var ErrUnsupportedSource = errors.New("unsupported seed source")

// 投入元の列名（小文字で比較する）
const (
	colName     = "name"
	colTags     = "tags"
	colPhotoURL = "photourl"
	colCity     = "city"
	colState    = "state"
	colCountry  = "country"
)

// ReadRecordsFromFile は拡張子に応じてCSVまたはHTMLの表から投入データを読み込む。
func ReadRecordsFromFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed source: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(bytes.NewReader(data))
	case ".html", ".htm":
		return ParseHTMLTable(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, path)
	}
}

// ParseCSV はヘッダー行付きのCSVを読み込む。
// 列: name,tags,photoUrl,city,state,country（順不同、大文字小文字を区別しない）。
// tagsはセル内のカンマ区切り。空行は読み飛ばす。
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return rowsToRecords(rows)
}

// ParseHTMLTable はHTML中の最初の<table>を読み込む。
// 最初の行をヘッダーとして扱う（th/tdのどちらでもよい）。
func ParseHTMLTable(r io.Reader) ([]Record, error) {
	tokenizer := html.NewTokenizer(r)

	var rows [][]string
	var row []string
	var cell strings.Builder
	inTable, inCell := false, false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to parse HTML: %w", err)
			}
			if !inTable && rows == nil {
				return nil, fmt.Errorf("no <table> found in HTML source")
			}
			return rowsToRecords(rows)

		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "table":
				inTable = true
			case "tr":
				if inTable {
					row = []string{}
				}
			case "td", "th":
				if inTable {
					inCell = true
					cell.Reset()
				}
			case "br":
				if inCell {
					cell.WriteString(" ")
				}
			}

		case html.TextToken:
			if inCell {
				cell.Write(tokenizer.Text())
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "td", "th":
				if inCell {
					row = append(row, strings.Join(strings.Fields(cell.String()), " "))
					inCell = false
				}
			case "tr":
				if inTable && row != nil {
					rows = append(rows, row)
					row = nil
				}
			case "table":
				// 最初の表のみを対象にする
				return rowsToRecords(rows)
			}
		}
	}
}

// rowsToRecords は先頭行をヘッダーとして各行をRecordに変換する。
func rowsToRecords(rows [][]string) ([]Record, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("seed source is empty")
	}

	index := make(map[string]int)
	for i, h := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := index[colName]; !ok {
		return nil, fmt.Errorf("seed source has no %q column", colName)
	}

	get := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		records = append(records, Record{
			Line:     n + 2,
			Name:     get(row, colName),
			Tags:     model.SplitTags(get(row, colTags)),
			PhotoURL: get(row, colPhotoURL),
			City:     get(row, colCity),
			State:    get(row, colState),
			Country:  get(row, colCountry),
		})
	}
	return records, nil
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
