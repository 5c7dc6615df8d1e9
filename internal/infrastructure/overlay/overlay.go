package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Геометрия блока текста: ширина на символ, шаг строк и отступ
const (
	charWidth  = 10
	lineMargin = 20
	offsetX    = 20
	offsetY    = 20
)

var (
	backgroundColor = color.NRGBA{30, 30, 30, 255}
	textColor       = color.NRGBA{0, 255, 0, 255}
)

// TextOverlay рисует строки статуса в левом верхнем углу кадра
type TextOverlay struct {
	face     font.Face
	maxWidth int
}

// NewTextOverlay создает оверлей. Кадры шире maxWidth уменьшаются
// перед отрисовкой; 0 отключает масштабирование.
func NewTextOverlay(maxWidth int) *TextOverlay {
	return &TextOverlay{
		face:     basicfont.Face7x13,
		maxWidth: maxWidth,
	}
}

// Draw возвращает копию img с текстом; исходный кадр не меняется
func (o *TextOverlay) Draw(img image.Image, lines []string) image.Image {
	var work *image.NRGBA
	if o.maxWidth > 0 && img.Bounds().Dx() > o.maxWidth {
		work = imaging.Resize(img, o.maxWidth, 0, imaging.Linear)
	} else {
		work = imaging.Clone(img)
	}
	if len(lines) == 0 {
		return work
	}

	maxChars := 0
	for _, l := range lines {
		if n := len([]rune(l)); n > maxChars {
			maxChars = n
		}
	}
	box := image.Rect(0, 0, charWidth*maxChars+offsetX, lineMargin*len(lines)+offsetY)
	draw.Draw(work, box.Add(work.Bounds().Min), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  work,
		Src:  image.NewUniform(textColor),
		Face: o.face,
	}
	for i, l := range lines {
		d.Dot = fixed.P(work.Bounds().Min.X+offsetX, work.Bounds().Min.Y+i*lineMargin+offsetY)
		d.DrawString(l)
	}
	return work
}
