package artists

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Masterofowls/Player/internal/catalog"
	"github.com/Masterofowls/Player/pkg/models"
)

// pageTemplate renders one static artist page. The markup mirrors the player
// UI: header with genre, description and stats from the info document, then
// the artist's tracks.
const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Artist}} - Artist Page</title>
    <link rel="stylesheet" href="../../styles.css">
</head>
<body>
    <div class="container">
        <div class="main-content">
            <div class="artist-header" style="background-image: url('{{.Info.HeaderImage}}')">
                <h1>{{.Artist}}</h1>
                <p>{{.Info.Genre}}</p>
            </div>
            <div class="artist-info">
                <div class="artist-description">
                    <h2>About {{.Artist}}</h2>
                    <p>{{.Info.Description}}</p>
                </div>
                <div class="artist-stats">
                    <h3>Stats</h3>
                    <p>Followers: {{.Info.Followers}}</p>
                    <p>Monthly Listeners: {{.Info.MonthlyListeners}}</p>
                </div>
            </div>
            <h2>Top Tracks</h2>
            <div id="track-list" class="track-list">
                {{- range .Tracks}}
                <div class="song-card" data-src="{{.Src}}">
                    <img src="{{if .AlbumArt}}{{.AlbumArt}}{{else}}../../default-album.jpg{{end}}" alt="{{.Title}}">
                    <div class="song-info">
                        <h3>{{.Title}}</h3>
                        <p>{{.Artist}}</p>
                    </div>
                </div>
                {{- end}}
            </div>
        </div>
    </div>
</body>
</html>
`

// Generator writes one static HTML page per primary artist and keeps the
// artist-metadata document up to date. It consumes the catalog's artist
// grouping and never touches playback.
type Generator struct {
	log       *logrus.Logger
	outputDir string
	infoPath  string
	tmpl      *template.Template
}

// NewGenerator creates a page generator writing under outputDir and reading
// artist metadata from the JSON document at infoPath.
func NewGenerator(outputDir, infoPath string, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Generator{
		log:       logger,
		outputDir: outputDir,
		infoPath:  infoPath,
		tmpl:      template.Must(template.New("artist").Parse(pageTemplate)),
	}
}

type pageData struct {
	Artist string
	Info   models.ArtistInfo
	Tracks []models.Track
}

// Generate renders a page for every primary artist in the catalog. Artists
// missing from the info document get default metadata, and the patched
// document is written back so later runs (and manual edits) start from a
// complete file.
func (g *Generator) Generate(cat *catalog.Catalog) error {
	info, err := g.loadInfo()
	if err != nil {
		return err
	}

	groups := cat.GroupByArtist()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, artist := range names {
		if _, ok := info[artist]; !ok {
			g.log.WithField("artist", artist).Info("No metadata for artist, using defaults")
			info[artist] = models.DefaultArtistInfo()
		}
		if err := g.writePage(artist, info[artist], groups[artist]); err != nil {
			return fmt.Errorf("generating page for %q: %w", artist, err)
		}
	}

	if err := g.saveInfo(info); err != nil {
		return err
	}

	g.log.WithField("artists", len(names)).Info("Artist pages generated")
	return nil
}

// PagePath returns where the page for an artist name lives, relative to the
// output dir. Exposed so the player can build links with the exact same
// normalization.
func PagePath(artist string) string {
	slug := Slug(catalog.PrimaryArtist(artist))
	return filepath.Join(slug, slug+".html")
}

func (g *Generator) writePage(artist string, info models.ArtistInfo, tracks []models.Track) error {
	pagePath := filepath.Join(g.outputDir, PagePath(artist))
	if err := os.MkdirAll(filepath.Dir(pagePath), 0755); err != nil {
		return fmt.Errorf("creating artist directory: %w", err)
	}

	f, err := os.Create(pagePath)
	if err != nil {
		return fmt.Errorf("creating artist page: %w", err)
	}
	defer f.Close()

	return g.tmpl.Execute(f, pageData{Artist: artist, Info: info, Tracks: tracks})
}

// loadInfo reads the artist-metadata document. A missing document is not an
// error; it starts empty and is created on save.
func (g *Generator) loadInfo() (map[string]models.ArtistInfo, error) {
	data, err := os.ReadFile(g.infoPath)
	if os.IsNotExist(err) {
		return make(map[string]models.ArtistInfo), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading artist info document: %w", err)
	}

	info := make(map[string]models.ArtistInfo)
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing artist info document: %w", err)
	}
	return info, nil
}

func (g *Generator) saveInfo(info map[string]models.ArtistInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding artist info document: %w", err)
	}
	if dir := filepath.Dir(g.infoPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating artist info directory: %w", err)
		}
	}
	if err := os.WriteFile(g.infoPath, data, 0644); err != nil {
		return fmt.Errorf("writing artist info document: %w", err)
	}
	return nil
}
