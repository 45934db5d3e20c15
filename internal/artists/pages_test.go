package artists

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Masterofowls/Player/internal/catalog"
	"github.com/Masterofowls/Player/pkg/models"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Artist1", "artist1"},
		{"spaces removed", "The Rolling Stones", "therollingstones"},
		{"accents stripped", "Beyoncé", "beyonce"},
		{"diacritics", "Sigur Rós", "sigurros"},
		{"punctuation dropped", "AC/DC!", "acdc"},
		{"empty", "", ""},
		{"only punctuation", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slug(tt.in)
			if got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
			// Normalization must be idempotent for link generation to agree
			// with page generation.
			if again := Slug(got); again != got {
				t.Errorf("Slug is not idempotent: Slug(%q) = %q", got, again)
			}
		})
	}
}

func TestPagePathUsesPrimaryArtist(t *testing.T) {
	got := PagePath("Artist One / Artist Two")
	want := filepath.Join("artistone", "artistone.html")
	if got != want {
		t.Errorf("PagePath() = %q, want %q", got, want)
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestGenerateWritesPagesAndPatchesInfo(t *testing.T) {
	dir := t.TempDir()
	infoPath := filepath.Join(dir, "artistInfo.json")

	// Pre-seed metadata for one artist only.
	seed := map[string]models.ArtistInfo{
		"Artist1": {
			Description:      "A band.",
			Genre:            "Rock",
			Followers:        "1000",
			MonthlyListeners: "5000",
			HeaderImage:      "header.jpg",
		},
	}
	data, _ := json.Marshal(seed)
	if err := os.WriteFile(infoPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	cat := catalog.FromTracks([]models.Track{
		{Title: "Song1", Artist: "Artist1", Src: "/media/a.mp3"},
		{Title: "Song2", Artist: "Artist2 / Artist1", Src: "/media/b.mp3"},
	})

	outDir := filepath.Join(dir, "artists")
	g := NewGenerator(outDir, infoPath, quietLogger())
	if err := g.Generate(cat); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	// One page per primary artist.
	for _, slug := range []string{"artist1", "artist2"} {
		page := filepath.Join(outDir, slug, slug+".html")
		content, err := os.ReadFile(page)
		if err != nil {
			t.Fatalf("expected page %s: %v", page, err)
		}
		if !strings.Contains(string(content), "<h1>") {
			t.Errorf("page %s looks empty", page)
		}
	}

	page1, _ := os.ReadFile(filepath.Join(outDir, "artist1", "artist1.html"))
	if !strings.Contains(string(page1), "A band.") {
		t.Error("artist1 page should carry its seeded description")
	}
	if !strings.Contains(string(page1), "Song1") {
		t.Error("artist1 page should list its tracks")
	}

	// Unknown artists get defaults, and the document is patched on disk.
	patched, err := os.ReadFile(infoPath)
	if err != nil {
		t.Fatal(err)
	}
	var info map[string]models.ArtistInfo
	if err := json.Unmarshal(patched, &info); err != nil {
		t.Fatal(err)
	}
	a2, ok := info["Artist2"]
	if !ok {
		t.Fatal("Artist2 missing from patched info document")
	}
	if a2.Description != "No description available." {
		t.Errorf("Artist2 description = %q, want default", a2.Description)
	}
	if info["Artist1"].Genre != "Rock" {
		t.Error("seeded Artist1 metadata must survive the patch")
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	infoPath := filepath.Join(dir, "artistInfo.json")
	outDir := filepath.Join(dir, "artists")

	cat := catalog.FromTracks([]models.Track{
		{Title: "Song1", Artist: "Artist1", Src: "/media/a.mp3"},
	})

	g := NewGenerator(outDir, infoPath, quietLogger())
	if err := g.Generate(cat); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(infoPath)
	if err != nil {
		t.Fatal(err)
	}

	if err := g.Generate(cat); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(infoPath)
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Error("repeated generation changed the info document")
	}
}
