package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maheshrc27/instaflow/internal/models"
)

const (
	defaultWatermarkOpacity = 80
	defaultWatermarkScale   = 20
	minWatermarkScale       = 5
	maxPercent              = 100
)

// MediaResolver derives the URL submitted to Instagram for an image, layering
// the account's watermark over it through a Cloudinary transformation.
type MediaResolver struct {
	CloudName string
}

func NewMediaResolver(cloudName string) *MediaResolver {
	return &MediaResolver{CloudName: cloudName}
}

// Resolve returns originalURL untouched unless the post opted in, the account
// has a watermark asset and the image has a provider public id.
func (r *MediaResolver) Resolve(originalURL, publicID string, applyWatermark bool, wm models.Watermark) string {
	if !applyWatermark || wm.PublicID == "" || publicID == "" {
		return originalURL
	}

	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/%s/%s", r.CloudName, WatermarkTransformation(wm), publicID)
}

// WatermarkTransformation builds l_<asset>,w_<scale>,fl_relative,g_<pos>,o_<opacity>.
// fl_relative makes w_ a fraction of the base image width.
func WatermarkTransformation(wm models.Watermark) string {
	overlay := strings.ReplaceAll(wm.PublicID, "/", ":")
	scale := strconv.FormatFloat(float64(watermarkScale(wm.Scale))/100, 'f', -1, 64)

	return fmt.Sprintf("l_%s,w_%s,fl_relative,g_%s,o_%d", overlay, scale, watermarkPosition(wm.Position), watermarkOpacity(wm.Opacity))
}

func watermarkPosition(position string) string {
	for _, p := range models.WatermarkPositions {
		if p == position {
			return p
		}
	}
	return models.WatermarkSouthEast
}

func watermarkOpacity(opacity int) int {
	if opacity <= 0 {
		return defaultWatermarkOpacity
	}
	return min(opacity, maxPercent)
}

func watermarkScale(scale int) int {
	if scale <= 0 {
		return defaultWatermarkScale
	}
	return max(minWatermarkScale, min(scale, maxPercent))
}
