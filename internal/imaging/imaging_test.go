package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scanJPEG renders a w×h page with a dark line across it, like a scanned
// document.
func scanJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.White)
		}
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func clearPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func bounds(t *testing.T, res *Result) image.Rectangle {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	return img.Bounds()
}

func TestProcessKeepsSmallScans(t *testing.T) {
	res, err := Process(bytes.NewReader(scanJPEG(t, 120, 90)), Options{})
	require.NoError(t, err)

	assert.Equal(t, OutputMIME, res.MIME)
	assert.Equal(t, 120, res.Width)
	assert.Equal(t, 90, res.Height)
	assert.Equal(t, image.Rect(0, 0, 120, 90), bounds(t, res))
}

func TestProcessFitsLongestSide(t *testing.T) {
	res, err := Process(bytes.NewReader(scanJPEG(t, 300, 900)), Options{MaxDimension: 150})
	require.NoError(t, err)

	assert.Equal(t, 50, res.Width)
	assert.Equal(t, 150, res.Height)
	assert.Equal(t, image.Rect(0, 0, 50, 150), bounds(t, res))
}

func TestProcessFlattensTransparency(t *testing.T) {
	res, err := Process(bytes.NewReader(clearPNG(t, 16, 16)), Options{})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	r, g, b, _ := img.At(8, 8).RGBA()
	assert.GreaterOrEqual(t, r>>8, uint32(240))
	assert.GreaterOrEqual(t, g>>8, uint32(240))
	assert.GreaterOrEqual(t, b>>8, uint32(240))
}

func TestProcessRejectsInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		opts Options
		want error
	}{
		{"text", []byte("invoice #42"), Options{}, ErrUnsupportedFormat},
		{"gif", []byte("GIF89a\x01\x00\x01\x00"), Options{}, ErrUnsupportedFormat},
		{"oversized", scanJPEG(t, 64, 64), Options{MaxBytes: 32}, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Process(bytes.NewReader(tt.data), tt.opts)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
