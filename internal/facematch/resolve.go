package facematch

// Resolve summarizes per-face results, given in detection order.
//
// No faces gives StatusNoFaceDetected. A single face reports its own outcome,
// including the best score when it was rejected. With several faces the first
// accepted face wins, not the highest scoring one; when none is accepted the
// confidence is 0.
func Resolve(matches []FaceMatch) Decision {
	d := Decision{
		Name:   NotFoundName,
		Status: StatusNoFaceDetected,
		Faces:  make([]FaceResult, len(matches)),
	}
	if len(matches) == 0 {
		return d
	}

	for i, m := range matches {
		fr := FaceResult{
			Index:      i,
			Name:       UnknownLabel,
			Confidence: m.Result.Score,
			Recognized: m.Result.Matched,
			Region:     m.Region,
		}
		if m.Result.Matched {
			fr.Name = m.Result.Label
		}
		d.Faces[i] = fr
	}

	d.Status = StatusNotInDatabase
	for _, fr := range d.Faces {
		if fr.Recognized {
			d.Name = fr.Name
			d.Confidence = fr.Confidence
			d.Status = StatusRecognized
			return d
		}
	}

	if len(matches) == 1 {
		d.Confidence = d.Faces[0].Confidence
	}
	return d
}
