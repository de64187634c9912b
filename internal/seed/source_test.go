package seed

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleCSV = `name,tags,photoUrl,city,state,country
Rice University,"private, research, urban",https://img/rice.jpg,Houston,TX,USA

University of Texas at Austin,"public,research,public",,Austin,TX,USA
,"orphan",,,,
`

func TestParseCSV(t *testing.T) {
	records, err := ParseCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len = %d, want 3", len(records))
	}

	rice := records[0]
	if rice.Name != "Rice University" || rice.City != "Houston" || rice.State != "TX" || rice.Country != "USA" {
		t.Errorf("unexpected record: %+v", rice)
	}
	if !reflect.DeepEqual(rice.Tags, []string{"private", "research", "urban"}) {
		t.Errorf("Tags = %v", rice.Tags)
	}
	if rice.PhotoURL != "https://img/rice.jpg" {
		t.Errorf("PhotoURL = %q", rice.PhotoURL)
	}

	ut := records[1]
	if !reflect.DeepEqual(ut.Tags, []string{"public", "research"}) {
		t.Errorf("duplicate tags should be removed, got %v", ut.Tags)
	}
	if ut.PhotoURL != "" {
		t.Errorf("PhotoURL = %q, want empty", ut.PhotoURL)
	}

	if records[2].Name != "" {
		t.Errorf("nameless row should be kept for the importer to skip, got %+v", records[2])
	}
}

func TestParseCSV_HeaderIsCaseInsensitiveAndReordered(t *testing.T) {
	in := "Country,NAME,PhotoURL\nUSA,Rice University,https://img/rice.jpg\n"

	records, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len = %d, want 1", len(records))
	}
	got := records[0]
	if got.Name != "Rice University" || got.Country != "USA" || got.PhotoURL != "https://img/rice.jpg" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("Tags = %v, want empty slice", got.Tags)
	}
}

func TestParseCSV_MissingNameColumn(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader("city,state\nHouston,TX\n")); err == nil {
		t.Fatal("expected error for missing name column")
	}
}

func TestParseCSV_Empty(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty source")
	}
}

const sampleHTML = `<html><body>
<p>Universities</p>
<table>
  <thead><tr><th>Name</th><th>Tags</th><th>City</th><th>State</th><th>Country</th></tr></thead>
  <tbody>
    <tr><td><a href="/rice">Rice   University</a></td><td>private, research</td><td>Houston</td><td>TX</td><td>USA</td></tr>
    <tr><td>Stanford University</td><td>private</td><td>Stanford</td><td>CA</td><td>USA</td></tr>
  </tbody>
</table>
<table><tr><th>name</th></tr><tr><td>Ignored College</td></tr></table>
</body></html>`

func TestParseHTMLTable_UsesFirstTable(t *testing.T) {
	records, err := ParseHTMLTable(strings.NewReader(sampleHTML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}
	if records[0].Name != "Rice University" {
		t.Errorf("Name = %q, whitespace should be collapsed", records[0].Name)
	}
	if !reflect.DeepEqual(records[0].Tags, []string{"private", "research"}) {
		t.Errorf("Tags = %v", records[0].Tags)
	}
	if records[1].City != "Stanford" || records[1].State != "CA" {
		t.Errorf("unexpected record: %+v", records[1])
	}
}

func TestParseHTMLTable_NoTable(t *testing.T) {
	if _, err := ParseHTMLTable(strings.NewReader("<html><body><p>nothing</p></body></html>")); err == nil {
		t.Fatal("expected error when no table is present")
	}
}

func TestReadRecordsFromFile(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "universities.csv")
	if err := os.WriteFile(csvPath, []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	htmlPath := filepath.Join(dir, "universities.HTML")
	if err := os.WriteFile(htmlPath, []byte(sampleHTML), 0o600); err != nil {
		t.Fatal(err)
	}
	txtPath := filepath.Join(dir, "universities.txt")
	if err := os.WriteFile(txtPath, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if records, err := ReadRecordsFromFile(csvPath); err != nil || len(records) != 3 {
		t.Errorf("csv: len = %d, err = %v", len(records), err)
	}
	if records, err := ReadRecordsFromFile(htmlPath); err != nil || len(records) != 2 {
		t.Errorf("html: len = %d, err = %v", len(records), err)
	}
	if _, err := ReadRecordsFromFile(txtPath); !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("txt: err = %v, want ErrUnsupportedSource", err)
	}
	if _, err := ReadRecordsFromFile(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("missing file should return an error")
	}
}
