package audio

// Pick chooses the preferred capture format from a device's capability
// list. It is a single ordered pass: the first candidate seen is the
// starting point, and a later candidate with at least minChannels channels
// replaces it when it is mu-law and the current pick is not, or when it
// has strictly fewer channels. Earlier candidates win ties, so callers
// must pass formats in the order the device reports them.
//
// ok is false only when candidates is empty.
func Pick(candidates []CaptureFormat, minChannels int) (best CaptureFormat, ok bool) {
	for i, f := range candidates {
		if i == 0 {
			best, ok = f, true
			continue
		}
		if f.Channels < minChannels {
			continue
		}
		switch {
		case f.Encoding == ULaw && best.Encoding != ULaw:
			best = f
		case f.Channels < best.Channels:
			best = f
		}
	}
	return best, ok
}
