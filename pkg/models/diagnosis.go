package models

// DiseaseKey is the coarse disease key derived from a file name before
// classification runs.
type DiseaseKey string

const (
	KeyPotatoLateBlight    DiseaseKey = "potato_late_blight"
	KeyPotatoEarlyBlight   DiseaseKey = "potato_early_blight"
	KeyPotatoHealthy       DiseaseKey = "potato_healthy"
	KeyPepperHealthy       DiseaseKey = "pepper_healthy"
	KeyPepperBacterialSpot DiseaseKey = "pepper_bacterial_spot"
	KeyUnknown             DiseaseKey = "unknown"
)

// Label is a canonical class name produced by the inference stage.
type Label string

const (
	LabelPotatoLateBlight    Label = "Potato___Late_blight"
	LabelPotatoEarlyBlight   Label = "Potato___Early_blight"
	LabelPotatoHealthy       Label = "Potato___healthy"
	LabelPepperHealthy       Label = "Pepper__bell___healthy"
	LabelPepperBacterialSpot Label = "Pepper__bell___Bacterial_spot"

	// LabelUnresolved is displayed in place of a disease name when
	// classification fails.
	LabelUnresolved Label = "Error: Unable to identify the plant or disease"
)

// IsError reports whether the label is the failure sentinel.
func (l Label) IsError() bool {
	return l == LabelUnresolved
}

// ImageRef locates a user-chosen photo.
type ImageRef struct {
	URI      string `json:"uri"`
	FileName string `json:"fileName,omitempty"`
}

// Recommendation is the static advice attached to a label.
type Recommendation struct {
	DiseaseName        string `json:"diseaseName"`
	Recommendations    string `json:"recommendations"`
	PreventiveMeasures string `json:"preventiveMeasures"`
}

// ResultParams is the payload carried by the navigation to the result route.
type ResultParams struct {
	ImageURI   string     `json:"imageUri"`
	DiseaseKey DiseaseKey `json:"diseaseKey"`
}
