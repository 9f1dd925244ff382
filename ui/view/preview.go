package view

import (
	"image"

	"github.com/soocke/qrscan-go/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// Preview shows the live camera frame.
type Preview interface {
	Update(img image.Image)
	Reset()
}

type preview struct {
	label     *LabelWidget
	maxW      int
	maxH      int
	prevPhoto *Img // disposed before replacement so old pixel data is freed
}

const (
	defaultPreviewW = 400
	defaultPreviewH = 225
)

// NewPreview creates the preview label spanning the window width at row.
func NewPreview(row, maxW, maxH int) Preview {
	if maxW <= 0 || maxH <= 0 {
		maxW, maxH = defaultPreviewW, defaultPreviewH
	}
	photo := NewPhoto(Data(images.EncodePNG(images.Placeholder(maxW, maxH))))
	label := Label(Image(photo), Borderwidth(1), Relief("sunken"))
	Grid(label, Row(row), Column(0), Columnspan(5), Sticky("we"), Padx("0.4m"), Pady("0.4m"))
	return &preview{label: label, maxW: maxW, maxH: maxH, prevPhoto: photo}
}

func (v *preview) Update(img image.Image) {
	if v.label == nil || img == nil {
		return
	}
	v.show(images.EncodePNG(images.ScaleToFit(img, v.maxW, v.maxH)))
}

func (v *preview) Reset() {
	v.show(images.EncodePNG(images.Placeholder(v.maxW, v.maxH)))
}

func (v *preview) show(png []byte) {
	if v.label == nil || len(png) == 0 {
		return
	}
	if v.prevPhoto != nil {
		v.prevPhoto.Delete()
	}
	v.prevPhoto = NewPhoto(Data(png))
	v.label.Configure(Image(v.prevPhoto))
}
