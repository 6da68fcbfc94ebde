package columnar

import (
	"reflect"
	"testing"
)

func sampleRows() []Row {
	return []Row{
		{DomainID: 1, URLID: 100, Scheme: "https", Host: "a.com", PathQuery: "/x", Domain: "a.com"},
		{DomainID: 1, URLID: 101, Scheme: "https", Host: "a.com", PathQuery: "/y", Domain: "a.com"},
		{DomainID: 2, URLID: 102, Scheme: "http", Host: "b.com", PathQuery: "/", Domain: "b.com"},
	}
}

func TestEncodeDecodeRowGroupRoundTrip(t *testing.T) {
	rows := sampleRows()
	payload, err := EncodeRowGroup(rows, 3)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	got, err := DecodeRowGroup(payload, AllColumns())
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !reflect.DeepEqual(got, rows) {
		t.Errorf("got %+v, want %+v", got, rows)
	}
}

func TestDecodeRowGroupProjectsColumns(t *testing.T) {
	rows := sampleRows()
	payload, err := EncodeRowGroup(rows, 3)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	got, err := DecodeRowGroup(payload, ColumnSet{Domain: true})
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	for i, row := range got {
		if row.Domain != rows[i].Domain {
			t.Errorf("row %d: got domain %q, want %q", i, row.Domain, rows[i].Domain)
		}
		if row.Scheme != "" || row.Host != "" || row.PathQuery != "" {
			t.Errorf("row %d: expected unselected columns to be zero, got %+v", i, row)
		}
	}
}

func TestRowGroupDomains(t *testing.T) {
	rows := sampleRows()
	payload, err := EncodeRowGroup(rows, 3)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	domains, err := RowGroupDomains(payload)
	if err != nil {
		t.Fatalf("failed to decode domains: %v", err)
	}
	want := []string{"a.com", "a.com", "b.com"}
	if !reflect.DeepEqual(domains, want) {
		t.Errorf("got %v, want %v", domains, want)
	}
}
