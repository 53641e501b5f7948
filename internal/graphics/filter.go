package graphics

import "image"

// blur applies a separable box blur of the given radius in place.
func blur(img *image.RGBA, radius int) {
	if radius <= 0 {
		return
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	tmp := make([]uint8, len(img.Pix))

	boxPass(img.Pix, tmp, w, h, img.Stride, radius, true)
	boxPass(tmp, img.Pix, w, h, img.Stride, radius, false)
}

func boxPass(src, dst []uint8, w, h, stride, radius int, horizontal bool) {
	outer, inner := h, w
	if !horizontal {
		outer, inner = w, h
	}
	offset := func(o, i int) int {
		if horizontal {
			return o*stride + i*4
		}
		return i*stride + o*4
	}

	for o := 0; o < outer; o++ {
		for c := 0; c < 4; c++ {
			sum, n := 0, 0
			for i := 0; i <= radius && i < inner; i++ {
				sum += int(src[offset(o, i)+c])
				n++
			}
			for i := 0; i < inner; i++ {
				dst[offset(o, i)+c] = uint8(sum / n)
				if add := i + radius + 1; add < inner {
					sum += int(src[offset(o, add)+c])
					n++
				}
				if drop := i - radius; drop >= 0 {
					sum -= int(src[offset(o, drop)+c])
					n--
				}
			}
		}
	}
}

// darken scales the colour channels by factor.
func darken(img *image.RGBA, factor float64) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(float64(img.Pix[i]) * factor)
		img.Pix[i+1] = uint8(float64(img.Pix[i+1]) * factor)
		img.Pix[i+2] = uint8(float64(img.Pix[i+2]) * factor)
	}
}
