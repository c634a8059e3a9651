package scene

import "routersupervisor/internal/model"

// flatRatio and tallRatio are the thresholds separating "flat" and "tall"
// shape classifications from merely oblong ones.
const (
	flatRatio = 3.0
	tallRatio = 3.0
)

// computeProportions deterministically derives shape-analysis fields from
// an object's bounding dimensions. Dimensions are ordered [x, y, z] with z
// as the vertical (height) axis.
func computeProportions(obj model.ObjectInfo) model.ProportionInfo {
	w, d, h := obj.Dimensions[0], obj.Dimensions[1], obj.Dimensions[2]

	dims := []float64{w, h, d}
	minDim, maxDim := dims[0], dims[0]
	for _, v := range dims[1:] {
		if v < minDim {
			minDim = v
		}
		if v > maxDim {
			maxDim = v
		}
	}

	p := model.ProportionInfo{
		MinDim: minDim,
		MaxDim: maxDim,
		Width:  w,
		Height: h,
		Depth:  d,
	}

	p.AspectXY = safeRatio(w, h)
	p.AspectXZ = safeRatio(w, d)
	p.AspectYZ = safeRatio(h, d)

	p.DominantAxis = dominantAxis(w, d, h)

	if minDim <= 0 {
		return p
	}
	p.IsFlat = maxDim/minDim >= flatRatio && (p.DominantAxis == "x" || p.DominantAxis == "y")
	p.IsTall = h > 0 && h/minDim >= tallRatio && p.DominantAxis == "z"
	return p
}

func safeRatio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// dominantAxis reports which of x, y, z is the longest dimension.
func dominantAxis(x, y, z float64) string {
	if x >= y && x >= z {
		return "x"
	}
	if y >= x && y >= z {
		return "y"
	}
	return "z"
}
