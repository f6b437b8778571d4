package collection

// Section describes one heading inside an article. Level is the 0-based
// intrinsic depth (the top heading of an article is 0); the munger updates ID
// and Level when the article is embedded into a book.
type Section struct {
	Title string `json:"title"`
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// ImageRef describes one image used by an article.
type ImageRef struct {
	Title  string `json:"title"`            // file page name or bare file name
	URL    string `json:"url"`              // source URL as referenced by the page
	Credit string `json:"credit,omitempty"` // attribution text, if known
}

// LicenseInfo describes the license the book content is published under.
type LicenseInfo struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"mw_license_url,omitempty"`
}

// Metadata is everything about the collection's pages that the book renderer
// needs besides the page HTML itself. Maps are keyed by DB key.
type Metadata struct {
	DisplayTitle map[string]string
	Sections     map[string][]Section
	Contributors map[string]int // name => user id
	Images       []ImageRef
	License      *LicenseInfo
}

// NewMetadata returns empty metadata with all maps initialized.
func NewMetadata() *Metadata {
	return &Metadata{
		DisplayTitle: map[string]string{},
		Sections:     map[string][]Section{},
		Contributors: map[string]int{},
	}
}
