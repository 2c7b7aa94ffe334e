package analysis

import (
	"github.com/smegmarip/stash-face-attributes-plugin/internal/estimator"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/pipeline"
)

// Report is the serializable summary of one analyzed image
type Report struct {
	Source        string               `json:"source"`
	ImageID       string               `json:"imageId,omitempty"`
	State         string               `json:"state"`
	AgeGender     string               `json:"ageGender"`
	Expression    string               `json:"expression"`
	Attributes    *estimator.AgeGender `json:"attributes,omitempty"`
	Faces         []faces.DetectedFace `json:"faces"`
	AnnotatedPath string               `json:"annotatedPath,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// NewReport summarises result for source
func NewReport(source string, result *pipeline.Result) Report {
	report := Report{
		Source:     source,
		State:      result.State.String(),
		AgeGender:  result.AgeGenderText,
		Expression: result.ExpressionText,
		Attributes: result.Attributes,
		Faces:      result.Faces,
	}
	if report.Faces == nil {
		report.Faces = []faces.DetectedFace{}
	}
	if result.Err != nil {
		report.Error = result.Err.Error()
	}
	return report
}

// ErrorReport covers requests that failed before reaching the pipeline
func ErrorReport(source string, err error) Report {
	return Report{
		Source: source,
		State:  pipeline.StateFailed.String(),
		Faces:  []faces.DetectedFace{},
		Error:  err.Error(),
	}
}

// Summary counts reports by outcome
type Summary struct {
	Total  int `json:"total"`
	Done   int `json:"done"`
	NoFace int `json:"noFace"`
	Failed int `json:"failed"`
}

// Summarize tallies reports
func Summarize(reports []Report) Summary {
	summary := Summary{Total: len(reports)}
	for _, r := range reports {
		switch r.State {
		case pipeline.StateDone.String():
			summary.Done++
		case pipeline.StateNoFace.String():
			summary.NoFace++
		default:
			summary.Failed++
		}
	}
	return summary
}
