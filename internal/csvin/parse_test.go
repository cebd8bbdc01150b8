package csvin

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/JonMunkholm/airwarehouse/internal/core"
)

func TestDecodingReader(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"utf-8 BOM", append([]byte{0xEF, 0xBB, 0xBF}, "hello,world"...), "hello,world"},
		{"no BOM", []byte("hello,world"), "hello,world"},
		{"empty", []byte{}, ""},
		{"only BOM", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"invalid byte", []byte("caf\xe9,ok"), "caf�,ok"},
		{"valid multibyte", []byte("José,São Paulo"), "José,São Paulo"},
		{"utf-16le BOM", []byte{0xFF, 0xFE, 'h', 0, 'i', 0}, "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewDecodingReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCountingReader(t *testing.T) {
	r := NewCountingReader(strings.NewReader("0123456789"))
	if _, err := io.ReadAll(r); err != nil {
		t.Fatal(err)
	}
	if r.BytesRead != 10 {
		t.Errorf("BytesRead = %d, want 10", r.BytesRead)
	}
}

func TestParse(t *testing.T) {
	input := "\xEF\xBB\xBFAirlineKey,AirlineName,Alliance\n" +
		"\n" +
		"BA,British Airways,oneworld\n" +
		"UA, ,\n" +
		"DL,Delta\n" +
		",,\n" +
		"AF,Air France,SkyTeam,extra\n"

	res, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(res.Headers, "|"); got != "AirlineKey|AirlineName|Alliance" {
		t.Errorf("headers = %q", got)
	}
	if len(res.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(res.Rows))
	}

	tests := []struct {
		row  int
		key  string
		want any
	}{
		{0, "AirlineName", "British Airways"},
		{1, "AirlineName", nil},
		{1, "Alliance", nil},
		{2, "Alliance", nil},
		{3, "Alliance", "SkyTeam"},
	}
	for _, tt := range tests {
		if got := res.Rows[tt.row].Value(tt.key); got != tt.want {
			t.Errorf("row %d %s = %#v, want %#v", tt.row, tt.key, got, tt.want)
		}
	}
	for i, r := range res.Rows {
		if r.Len() != 3 {
			t.Errorf("row %d has %d fields, want 3", i, r.Len())
		}
	}
	if res.Bytes == 0 {
		t.Error("Bytes not counted")
	}
}

func TestParse_DuplicateAndBlankHeaders(t *testing.T) {
	res, err := Parse(strings.NewReader("Code,,Code\nA,B,C\n"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Headers[1] != "column_2" {
		t.Errorf("blank header = %q, want column_2", res.Headers[1])
	}
	row := res.Rows[0]
	if row.Len() != 2 || row.Value("Code") != "A" || row.Value("column_2") != "B" {
		t.Errorf("row = %v", row.Keys())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", core.ErrEmptyUpload},
		{"blank lines", "\n\n , \n", core.ErrEmptyUpload},
		{"header only", "AirlineKey,AirlineName\n", core.ErrEmptyUpload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParse_ReadFailureIsInvalidCSV(t *testing.T) {
	_, err := Parse(iotest.ErrReader(errors.New("connection reset")))
	if !errors.Is(err, core.ErrInvalidCSV) {
		t.Errorf("error = %v, want ErrInvalidCSV", err)
	}
}

func TestParse_StrayQuotesAccepted(t *testing.T) {
	res, err := Parse(strings.NewReader("Name,City\nO\"Brien,Cork\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Rows[0].Value("Name"); got != `O"Brien` {
		t.Errorf("Name = %#v", got)
	}
}

func TestParse_FeedsCleaner(t *testing.T) {
	res, err := Parse(strings.NewReader("AirportKey,AirportName,City,Country\nlhr,Heathrow,London,UK\n"))
	if err != nil {
		t.Fatal(err)
	}
	kind, err := core.DetectEntity(res.Headers)
	if err != nil || kind != core.Airport {
		t.Fatalf("DetectEntity = %v, %v", kind, err)
	}
	p := core.NewCleaner(nil, nil).Clean(kind, res.Rows)
	if len(p.Clean) != 1 {
		t.Fatalf("clean = %d, quarantined = %+v", len(p.Clean), p.Quarantined)
	}
	if got := p.Clean[0].Fields.Value("airportkey"); got != "LHR" {
		t.Errorf("airportkey = %v, want LHR", got)
	}
}
