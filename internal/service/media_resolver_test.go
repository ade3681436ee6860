package service

import (
	"strings"
	"testing"

	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/stretchr/testify/assert"
)

const sourceURL = "https://res.cloudinary.com/demo/image/upload/v1/posts/abc.jpg"

func TestResolve_OptOutReturnsOriginal(t *testing.T) {
	r := NewMediaResolver("demo")

	configs := []models.Watermark{
		{},
		{PublicID: "logos/brand", Position: models.WatermarkCenter, Opacity: 50, Scale: 40},
		{PublicID: "logo", Position: "nowhere", Opacity: 500, Scale: 1},
	}
	for _, wm := range configs {
		assert.Equal(t, sourceURL, r.Resolve(sourceURL, "posts/abc", false, wm))
	}
}

func TestResolve_NoAssetOrPublicIDReturnsOriginal(t *testing.T) {
	r := NewMediaResolver("demo")

	assert.Equal(t, sourceURL, r.Resolve(sourceURL, "posts/abc", true, models.Watermark{}))
	assert.Equal(t, sourceURL, r.Resolve(sourceURL, "", true, models.Watermark{PublicID: "logo"}))
}

func TestResolve_Defaults(t *testing.T) {
	r := NewMediaResolver("demo")

	got := r.Resolve(sourceURL, "posts/abc", true, models.Watermark{PublicID: "logos/brand"})

	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/l_logos:brand,w_0.2,fl_relative,g_south_east,o_80/posts/abc", got)
}

func TestResolve_ScaleIsRelativeFraction(t *testing.T) {
	r := NewMediaResolver("demo")

	tests := []struct {
		scale    int
		expected string
	}{
		{scale: 35, expected: "w_0.35,"},
		{scale: 100, expected: "w_1,"},
		{scale: 5, expected: "w_0.05,"},
		{scale: 2, expected: "w_0.05,"},
		{scale: 250, expected: "w_1,"},
	}

	for _, tt := range tests {
		wm := models.Watermark{PublicID: "logo", Scale: tt.scale}
		// same output whatever the source resolution is
		for _, src := range []string{"https://cdn.example.com/400x300.jpg", "https://cdn.example.com/4000x3000.jpg"} {
			got := r.Resolve(src, "posts/abc", true, wm)
			assert.Contains(t, got, tt.expected)
			assert.Contains(t, got, "fl_relative")
		}
	}
}

func TestResolve_PositionAndOpacity(t *testing.T) {
	r := NewMediaResolver("demo")

	for _, position := range models.WatermarkPositions {
		got := r.Resolve(sourceURL, "p", true, models.Watermark{PublicID: "logo", Position: position, Opacity: 55})
		assert.True(t, strings.Contains(got, "g_"+position+","), got)
		assert.Contains(t, got, "o_55/")
	}

	got := r.Resolve(sourceURL, "p", true, models.Watermark{PublicID: "logo", Position: "top", Opacity: 150})
	assert.Contains(t, got, "g_south_east,")
	assert.Contains(t, got, "o_100/")
}
