package embeddings

// PadToTargetDimensions pads or truncates a vector to the target dimensions.
func PadToTargetDimensions(vec []float32, target int) []float32 {
	if target <= 0 || len(vec) == target {
		return vec
	}

	if len(vec) > target {
		return vec[:target]
	}

	padded := make([]float32, target)
	copy(padded, vec)

	return padded
}

// IsZeroVector reports whether every component is zero.
func IsZeroVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}

	return true
}
