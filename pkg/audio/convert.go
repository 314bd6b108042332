package audio

import "encoding/binary"

// PCM16ToFloat32 decodes little-endian 16-bit PCM into normalized [-1, 1]
// samples. A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(s) / 32768
	}
	return out
}

// Float32ToPCM16 encodes normalized samples as little-endian 16-bit PCM.
// Samples outside [-1, 1] are clamped before scaling.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}

// ResampleMono resamples mono samples from srcRate to dstRate using linear
// interpolation. If the rates match (or either is non-positive) the input is
// returned unchanged.
func ResampleMono(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) < 2 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstLen {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

// DownmixStereo averages interleaved stereo sample pairs into mono. A
// trailing unpaired sample is ignored.
func DownmixStereo(samples []float32) []float32 {
	n := len(samples) / 2
	out := make([]float32, n)
	for i := range n {
		out[i] = (samples[i*2] + samples[i*2+1]) / 2
	}
	return out
}
