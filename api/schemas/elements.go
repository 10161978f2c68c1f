package schemas

// -- Page Element Schemas --

// ElementAttributes carries the subset of DOM attributes the resolver and
// executor care about. Values are empty strings when the attribute is absent.
type ElementAttributes struct {
	ID          string `json:"id"`
	Class       string `json:"class"`
	Href        string `json:"href"`
	Value       string `json:"value"`
	Placeholder string `json:"placeholder"`
	AriaLabel   string `json:"ariaLabel"`
	Title       string `json:"title"`
	Role        string `json:"role"`
}

// ElementRecord describes one observable element in a page snapshot.
//
// IDs are assigned in discovery order and are contiguous within a single
// snapshot (base-document elements first, popup elements appended after).
// They are meaningless against any other snapshot.
type ElementRecord struct {
	ID       int    `json:"id"`
	Tag      string `json:"tag"`
	Type     string `json:"type,omitempty"`
	Text     string `json:"text"`
	Selector string `json:"selector"`

	// Geometry in page coordinates (viewport position plus scroll offset).
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`

	Disabled   bool `json:"disabled"`
	Visible    bool `json:"visible"`
	InViewport bool `json:"inViewport"`
	// IsPopup marks elements discovered inside an overlay/modal region
	// rather than the base document.
	IsPopup bool `json:"isPopup"`

	Attributes ElementAttributes `json:"attributes"`
}

// Semantic element kinds produced by the snapshot classifier.
const (
	TypeButton      = "button"
	TypeLink        = "link"
	TypeInput       = "input"
	TypeTextarea    = "textarea"
	TypeDropdown    = "dropdown"
	TypeCheckbox    = "checkbox"
	TypeRadio       = "radio"
	TypeLabel       = "label"
	TypeImage       = "image"
	TypeHeader      = "header"
	TypeInteractive = "interactive"
)

// ActionResult is the uniform outcome of one executor invocation. Failures
// are data, not errors: Message carries the per-strategy diagnostics.
type ActionResult struct {
	Success bool
	Message string
}
