package tools

import (
	"context"
	"strings"

	"github.com/finchkit/finch/core"
)

// ImageSafetyInput identifies the image and the analysis to run.
type ImageSafetyInput struct {
	ImageData string `json:"image_data" description:"Base64-encoded image or image URL"`
	CheckType string `json:"check_type,omitempty" enum:"safety,describe,both" description:"Type of analysis to perform"`
}

// ImageSafetyOutput reports the analysis.
type ImageSafetyOutput struct {
	IsSafe          bool              `json:"is_safe"`
	SafetyScore     float64           `json:"safety_score"`
	Categories      map[string]string `json:"safety_categories,omitempty"`
	Description     string            `json:"description,omitempty"`
	DetectedObjects []string          `json:"detected_objects,omitempty"`
}

// NewImageSafetyTool builds the image analysis tool. This is a simulated
// analyzer; a production deployment would call a safe-search style vision
// API.
func NewImageSafetyTool() core.ToolHandle {
	tool := New("analyze_image",
		"Analyze an image for safety and content. Returns whether the image is safe for children and a description.",
		func(ctx context.Context, in ImageSafetyInput, meta core.ToolMeta) (ImageSafetyOutput, error) {
			if in.ImageData == "" {
				return ImageSafetyOutput{}, core.NewError(core.ErrBadRequest, "image analysis requires image data")
			}
			checkType := in.CheckType
			if checkType == "" {
				checkType = "both"
			}

			out := ImageSafetyOutput{IsSafe: true, SafetyScore: 0.95}
			description := "A colorful image suitable for children."
			if strings.Contains(strings.ToLower(in.ImageData), "unsafe") {
				out.IsSafe = false
				out.SafetyScore = 0.2
				description = "This image may contain inappropriate content."
			}

			if checkType == "safety" || checkType == "both" {
				out.Categories = map[string]string{
					"violence":      "none",
					"adult_content": "none",
					"medical":       "none",
					"scary":         "none",
				}
			}
			if checkType == "describe" || checkType == "both" {
				out.Description = description
				if out.IsSafe {
					out.DetectedObjects = []string{"colorful background", "friendly characters"}
				}
			}
			return out, nil
		})
	return tool
}
