package mirror

import "math"

// audioStride keeps 1 of every 4 samples.
const audioStride = 4

// EncodeAudio downsamples and quantizes a block of unit-range samples:
// every 4th sample survives, mapped to an unsigned byte via
// round((x+1)*127). Roughly an 8x size reduction against float32 input.
func EncodeAudio(samples []float32) []byte {
	kept := (len(samples) + audioStride - 1) / audioStride
	packet := make([]byte, 1, 1+kept)
	packet[0] = TagAudio
	for i := 0; i < len(samples); i += audioStride {
		packet = append(packet, quantize(samples[i]))
	}
	return packet
}

// DecodeAudio dequantizes and replicates each value across the four
// positions it represents.
func DecodeAudio(packet []byte) ([]float32, error) {
	if len(packet) < 1 || packet[0] != TagAudio {
		return nil, ErrWrongTag
	}

	payload := packet[1:]
	out := make([]float32, 0, len(payload)*audioStride)
	for _, b := range payload {
		v := dequantize(b)
		for i := 0; i < audioStride; i++ {
			out = append(out, v)
		}
	}
	return out, nil
}

func quantize(x float32) byte {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return byte(math.Round(float64(x+1) * 127))
}

func dequantize(b byte) float32 {
	return float32(b)/127 - 1
}
