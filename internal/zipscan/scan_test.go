package zipscan

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func buildZip(t *testing.T, method uint16, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			t.Fatalf("CreateHeader(%q): %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("Write(%q): %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestFindInfoJSONDeflated(t *testing.T) {
	data := buildZip(t, zip.Deflate, map[string]string{
		"boblibrary_0.2.2/info.json": `{"name":"boblibrary"}`,
		"boblibrary_0.2.2/data.lua":  "-- lua source",
	})

	got, err := FindInfoJSON(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("FindInfoJSON: %v", err)
	}
	if string(got) != `{"name":"boblibrary"}` {
		t.Errorf("got %q", got)
	}
}

func TestFindInfoJSONStored(t *testing.T) {
	data := buildZip(t, zip.Store, map[string]string{
		"boblibrary_0.2.2/info.json": `{"name":"boblibrary"}`,
	})

	got, err := FindInfoJSON(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("FindInfoJSON: %v", err)
	}
	if string(got) != `{"name":"boblibrary"}` {
		t.Errorf("got %q", got)
	}
}

func TestFindInfoJSONNotFound(t *testing.T) {
	data := buildZip(t, zip.Deflate, map[string]string{
		"boblibrary_0.2.2/data.lua": "-- lua source",
	})

	_, err := FindInfoJSON(bytes.NewReader(data))
	var zerr *Error
	if !errors.As(err, &zerr) || zerr.Kind != KindFileNotFound {
		t.Fatalf("expected FileNotFound, got %v", err)
	}
}

func TestFindInfoJSONIgnoresNestedInfoJSON(t *testing.T) {
	data := buildZip(t, zip.Deflate, map[string]string{
		"boblibrary_0.2.2/sub/info.json": `{"wrong":true}`,
		"boblibrary_0.2.2/info.json":     `{"name":"boblibrary"}`,
	})

	got, err := FindInfoJSON(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("FindInfoJSON: %v", err)
	}
	if string(got) != `{"name":"boblibrary"}` {
		t.Errorf("got %q, want the top-level entry only", got)
	}
}

func TestFindInfoJSONTruncatedArchive(t *testing.T) {
	_, err := FindInfoJSON(bytes.NewReader([]byte("not a zip")))
	var zerr *Error
	if !errors.As(err, &zerr) || zerr.Kind != KindEndOfCentralDirectoryRecordNotFound {
		t.Fatalf("expected EndOfCentralDirectoryRecordNotFound, got %v", err)
	}
}

func TestIsTopLevelInfoJSON(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"mod/info.json", true},
		{"mod/sub/info.json", false},
		{"info.json", false},
		{"mod/readme.md", false},
	}
	for _, c := range cases {
		if got := isTopLevelInfoJSON([]byte(c.name)); got != c.want {
			t.Errorf("isTopLevelInfoJSON(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}
