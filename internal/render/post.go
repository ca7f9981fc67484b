package render

import "image"

// ApplyBrightness scales the colour channels of img by b (0..1). Alpha is
// left alone. b >= 1 is a no-op.
func ApplyBrightness(img *image.RGBA, b float64) {
	if b >= 1 {
		return
	}
	if b < 0 {
		b = 0
	}
	scale := uint32(b*256 + 0.5)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i+0] = uint8(uint32(img.Pix[i+0]) * scale >> 8)
		img.Pix[i+1] = uint8(uint32(img.Pix[i+1]) * scale >> 8)
		img.Pix[i+2] = uint8(uint32(img.Pix[i+2]) * scale >> 8)
	}
}
