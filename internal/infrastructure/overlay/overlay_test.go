package overlay

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img
}

func TestDraw_DoesNotMutateSource(t *testing.T) {
	src := gray(320, 120)

	out := NewTextOverlay(0).Draw(src, []string{"Frame:1/9", "Play"})

	assert.Equal(t, uint8(200), src.GrayAt(5, 5).Y)
	require.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, color.NRGBAModel.Convert(backgroundColor), color.NRGBAModel.Convert(out.At(5, 5)))
}

func TestDraw_BoxSizedByLongestLine(t *testing.T) {
	src := gray(400, 200)
	lines := []string{"Frame:1/9", "a:<- d:->", "Play"}

	out := NewTextOverlay(0).Draw(src, lines)

	// 9 символов * 10 + 20 = 110; 3 строки * 20 + 20 = 80
	inside := color.NRGBAModel.Convert(out.At(109, 79))
	outside := color.NRGBAModel.Convert(out.At(111, 81))
	assert.Equal(t, color.NRGBAModel.Convert(backgroundColor), inside)
	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, outside)
}

func TestDraw_TextIsGreen(t *testing.T) {
	out := NewTextOverlay(0).Draw(gray(300, 100), []string{"Frame:1234/9999"})

	found := false
	b := out.Bounds()
	for y := b.Min.Y; y < 40 && !found; y++ {
		for x := b.Min.X; x < 200; x++ {
			if color.NRGBAModel.Convert(out.At(x, y)) == color.NRGBAModel.Convert(textColor) {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "no text pixels drawn")
}

func TestDraw_ScalesDownWideFrames(t *testing.T) {
	out := NewTextOverlay(100).Draw(gray(400, 200), nil)

	assert.Equal(t, image.Rect(0, 0, 100, 50), out.Bounds())
}
