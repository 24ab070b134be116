package models

import "time"

// ScreenState is a state of the selection or result screen.
type ScreenState string

const (
	StateIdle      ScreenState = "idle"
	StateSelecting ScreenState = "selecting"
	StateNavigated ScreenState = "navigated"
	StateLoading   ScreenState = "loading"
	StateResolved  ScreenState = "resolved"
	StateRevealed  ScreenState = "revealed"
	StateFailed    ScreenState = "failed"
)

// Terminal reports whether no further transition can happen without a new
// selection.
func (s ScreenState) Terminal() bool {
	return s == StateRevealed || s == StateFailed
}

// PickerAsset mirrors one asset of an image picker response.
type PickerAsset struct {
	URI      string `json:"uri"`
	FileName string `json:"fileName,omitempty"`
}

// PickerResponse is the body clients post after their image picker returns.
type PickerResponse struct {
	DidCancel    bool          `json:"didCancel,omitempty"`
	ErrorCode    string        `json:"errorCode,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Assets       []PickerAsset `json:"assets,omitempty"`
}

// Section is one titled block of the result screen.
type Section struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ScreenView is a render snapshot of a result screen.
type ScreenView struct {
	ID          string      `json:"id"`
	Route       string      `json:"route"`
	State       ScreenState `json:"state"`
	ImageURI    string      `json:"imageUri"`
	DiseaseKey  DiseaseKey  `json:"diseaseKey"`
	Label       Label       `json:"label,omitempty"`
	Loading     bool        `json:"loading"`
	LoadingText string      `json:"loadingText,omitempty"`
	DiseaseLine string      `json:"diseaseLine,omitempty"`
	Sections    []Section   `json:"sections,omitempty"`
	Error       string      `json:"error,omitempty"`
	ErrorType   string      `json:"errorType,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// HomeView is returned whenever the client ends up on the selection screen.
type HomeView struct {
	Route  string      `json:"route"`
	State  ScreenState `json:"state"`
	Notice *Notice     `json:"notice,omitempty"`
}

// Notice is a blocking alert shown on the selection screen.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// RecommendationResponse answers a recommendation lookup.
type RecommendationResponse struct {
	Label          Label          `json:"label"`
	Known          bool           `json:"known"`
	Recommendation Recommendation `json:"recommendation"`
	Suggestion     Label          `json:"suggestion,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
