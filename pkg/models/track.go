package models

// Track represents a single entry of the catalog document. Src doubles as the
// track's identity within a session: search results are reconciled against the
// playback queue by Src.
type Track struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Src      string `json:"src"`
	AlbumArt string `json:"albumArt,omitempty"` // data URI or image URL
}

// ArtistInfo is the per-artist metadata document shape, keyed by raw artist
// name in artistInfo.json. The page generator fills defaults for artists it
// has never seen and writes the patched document back.
type ArtistInfo struct {
	Description      string `json:"description"`
	Genre            string `json:"genre"`
	Followers        string `json:"followers"`
	MonthlyListeners string `json:"monthlyListeners"`
	HeaderImage      string `json:"headerImage"`
}

// DefaultArtistInfo returns the placeholder metadata used for artists missing
// from the info document.
func DefaultArtistInfo() ArtistInfo {
	return ArtistInfo{
		Description:      "No description available.",
		Genre:            "Unknown genre",
		Followers:        "N/A",
		MonthlyListeners: "N/A",
		HeaderImage:      "../default-header.jpg",
	}
}
