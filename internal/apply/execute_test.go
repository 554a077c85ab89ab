package apply

import (
	"crypto/sha1" // #nosec G401 - matching the Mod Portal's own release checksum algorithm
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"

	"factorio-mods-cli/internal/local"
	"factorio-mods-cli/internal/mods"
	"factorio-mods-cli/internal/registry"
)

func TestExecuteDownloadsAndRemoves(t *testing.T) {
	const payload = "pretend this is a zip file"
	sum := sha1.Sum([]byte(payload)) // #nosec G401

	mux := http.NewServeMux()
	mux.HandleFunc("/download/boblibrary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte(payload))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	srvURL, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	client, err := registry.NewClientWithBaseURL(
		&http.Client{Transport: srv.Client().Transport},
		srv.URL+"/", srv.URL+"/mods", srv.URL+"/login",
		[]string{srvURL.Hostname()},
	)
	if err != nil {
		t.Fatalf("NewClientWithBaseURL: %v", err)
	}

	userDir := t.TempDir()
	modsDir := filepath.Join(userDir, "mods")
	if err := os.MkdirAll(modsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	staleModPath := filepath.Join(modsDir, "oldmod_1.0.0.zip")
	if err := os.WriteFile(staleModPath, []byte("old contents"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	installDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(installDir, "data", "base"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(installDir, "data", "base", "info.json"), []byte(`{"version":"1.1.0"}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(modsDir, "mod-list.json"), []byte(`{"mods":[]}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(userDir, "player-data.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	inst, err := local.New(installDir, userDir)
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}

	version, err := semver.NewVersion("1.0.0")
	if err != nil {
		t.Fatalf("semver.NewVersion: %v", err)
	}

	diff := Diff{
		ToUninstall: []local.InstalledMod{
			{Info: mods.ReleaseInfo{Name: "oldmod", Version: version}, Packaging: local.PackagingZipped, Path: staleModPath},
		},
		ToInstall: []NamedRelease{
			{
				Name: "boblibrary",
				Release: mods.Release{
					Version:     version,
					DownloadURL: "/download/boblibrary",
					FileName:    "boblibrary_1.0.0.zip",
					Sha1:        hex.EncodeToString(sum[:]),
				},
			},
		},
	}

	if err := Execute(t.Context(), inst, client, mods.UserCredentials{}, diff); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := os.Stat(staleModPath); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed", staleModPath)
	}

	installedPath := filepath.Join(modsDir, "boblibrary_1.0.0.zip")
	got, err := os.ReadFile(installedPath)
	if err != nil {
		t.Fatalf("expected %s to be downloaded: %v", installedPath, err)
	}
	if string(got) != payload {
		t.Errorf("downloaded content = %q, want %q", got, payload)
	}

	if _, err := os.Stat(installedPath + ".new"); !os.IsNotExist(err) {
		t.Error("staging file should have been renamed away")
	}
}

func TestExecuteRejectsSha1Mismatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/download/boblibrary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("wrong contents"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	srvURL, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	client, err := registry.NewClientWithBaseURL(
		&http.Client{Transport: srv.Client().Transport},
		srv.URL+"/", srv.URL+"/mods", srv.URL+"/login",
		[]string{srvURL.Hostname()},
	)
	if err != nil {
		t.Fatalf("NewClientWithBaseURL: %v", err)
	}

	userDir := t.TempDir()
	modsDir := filepath.Join(userDir, "mods")
	if err := os.MkdirAll(modsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	installDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(installDir, "data", "base"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(installDir, "data", "base", "info.json"), []byte(`{"version":"1.1.0"}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(modsDir, "mod-list.json"), []byte(`{"mods":[]}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(userDir, "player-data.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	inst, err := local.New(installDir, userDir)
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}

	version, err := semver.NewVersion("1.0.0")
	if err != nil {
		t.Fatalf("semver.NewVersion: %v", err)
	}

	diff := Diff{
		ToInstall: []NamedRelease{
			{
				Name: "boblibrary",
				Release: mods.Release{
					Version:     version,
					DownloadURL: "/download/boblibrary",
					FileName:    "boblibrary_1.0.0.zip",
					Sha1:        "0000000000000000000000000000000000000",
				},
			},
		},
	}

	err = Execute(t.Context(), inst, client, mods.UserCredentials{}, diff)
	if err == nil {
		t.Fatal("expected a sha1 mismatch error")
	}

	if _, statErr := os.Stat(filepath.Join(modsDir, "boblibrary_1.0.0.zip")); !os.IsNotExist(statErr) {
		t.Error("a file that failed sha1 validation should not be left in place")
	}
}
